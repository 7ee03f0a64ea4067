package records

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/provider"
	"github.com/communitymeet/backend/pkg/queue"
)

type fakeFinder struct {
	meeting *models.Meeting
	err     error
}

func (f *fakeFinder) GetLiveByMID(ctx context.Context, mid string) (*models.Meeting, error) {
	return f.meeting, f.err
}

type fakeGateway struct {
	provider.Gateway
	url string
	err error
}

func (g *fakeGateway) RecordDownloadURL(ctx context.Context, recordFileID, userID string) (string, error) {
	return g.url, g.err
}

type fakeGateways struct{ gw provider.Gateway }

func (f *fakeGateways) Get(platform string) (provider.Gateway, error) {
	if f.gw == nil {
		return nil, errors.New("unknown platform")
	}
	return f.gw, nil
}

type fakeIngester struct {
	payloads []queue.RecordingIngestPayload
	err      error
}

func (f *fakeIngester) EnqueueRecordingIngest(ctx context.Context, p queue.RecordingIngestPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func encodeEvent(t *testing.T, ev map[string]interface{}) string {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]string{"data": base64.StdEncoding.EncodeToString(raw)})
	require.NoError(t, err)
	return string(body)
}

func completedEvent(t *testing.T) string {
	return encodeEvent(t, map[string]interface{}{
		"event": "recording.completed",
		"payload": []map[string]interface{}{{
			"meeting_info": map[string]interface{}{
				"meeting_id":   "9001",
				"meeting_code": "123456789",
				"creator":      map[string]string{"userid": "host-1"},
				"start_time":   1756700000,
				"end_time":     1756703600,
			},
			"recording_files": []map[string]string{{"record_file_id": "rf-1"}},
		}},
	})
}

func postWebhook(w *Webhook, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w.Receive(c)
	return rec
}

func TestWebhookVerifyEchoesCheckStr(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := NewWebhook(&fakeFinder{}, &fakeGateways{}, &fakeIngester{}, nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/webhook?check_str="+base64.StdEncoding.EncodeToString([]byte("pong")), nil)
	w.Verify(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestWebhookEnqueuesIngest(t *testing.T) {
	ing := &fakeIngester{}
	m := &models.Meeting{MID: "123456789", Platform: "tencent", MeetingType: models.MeetingTypeSIG, GroupName: "Kernel"}
	w := NewWebhook(&fakeFinder{meeting: m}, &fakeGateways{gw: &fakeGateway{url: "https://dl.example.com/rf-1"}}, ing, nil)

	rec := postWebhook(w, completedEvent(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ing.payloads, 1)
	p := ing.payloads[0]
	assert.Equal(t, "123456789", p.MeetingCode)
	assert.Equal(t, "https://dl.example.com/rf-1", p.DownloadURL)
	assert.Equal(t, "sig/Kernel/123456789.mp4", p.ObjectKey)
}

func TestWebhookIgnoresIncompleteEvent(t *testing.T) {
	ing := &fakeIngester{}
	w := NewWebhook(&fakeFinder{err: errors.New("should not be called")}, &fakeGateways{}, ing, nil)

	body := encodeEvent(t, map[string]interface{}{
		"event": "meeting.started",
		"payload": []map[string]interface{}{{
			"meeting_info": map[string]interface{}{"meeting_id": "9001"},
		}},
	})
	rec := postWebhook(w, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ing.payloads)
}

func TestWebhookDownloadResolutionFailure(t *testing.T) {
	ing := &fakeIngester{}
	m := &models.Meeting{MID: "123456789", Platform: "tencent"}
	w := NewWebhook(&fakeFinder{meeting: m}, &fakeGateways{gw: &fakeGateway{err: errors.New("provider down")}}, ing, nil)

	rec := postWebhook(w, completedEvent(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ing.payloads)
}

func TestWebhookInvalidEncoding(t *testing.T) {
	w := NewWebhook(&fakeFinder{}, &fakeGateways{}, &fakeIngester{}, nil)
	rec := postWebhook(w, `{"data":"%%%not-base64%%%"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
