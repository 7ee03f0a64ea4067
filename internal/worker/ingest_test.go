package worker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/pkg/queue"
)

type fakeReplaySetter struct {
	meeting *models.Meeting
	replay  string
}

func (f *fakeReplaySetter) GetByMID(ctx context.Context, mid string) (*models.Meeting, error) {
	return f.meeting, nil
}

func (f *fakeReplaySetter) SetReplayURL(ctx context.Context, mid, replayURL string) error {
	f.replay = replayURL
	return nil
}

type fakeLedger struct {
	existing bool
	lookups  int
	created  int
}

func (f *fakeLedger) Exists(ctx context.Context, meetingCode string, fileSize int64) (bool, error) {
	f.lookups++
	return f.existing, nil
}

func (f *fakeLedger) Create(ctx context.Context, meetingCode string, fileSize int64, downloadURL string) (*models.Record, error) {
	f.created++
	return &models.Record{}, nil
}

func ingestJob(t *testing.T, downloadURL string) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(queue.RecordingIngestPayload{
		MID:         "123456789",
		MeetingCode: "123456789",
		DownloadURL: downloadURL,
		ObjectKey:   "sig/Kernel/123456789.mp4",
	})
	require.NoError(t, err)
	return &queue.Job{Type: queue.JobTypeRecordingIngest, Payload: raw}
}

type fakeBlobStore struct {
	uploads  int
	key      string
	size     int64
	metadata map[string]string
	url      string
}

func (f *fakeBlobStore) Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, metadata map[string]string) (string, error) {
	f.uploads++
	f.key = key
	f.size = contentLength
	f.metadata = metadata
	return f.url, nil
}

func TestIngestArchivesNewRecording(t *testing.T) {
	body := []byte("not really an mp4")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	meetings := &fakeReplaySetter{meeting: &models.Meeting{
		MID: "123456789", MMID: "9001", Community: "openubmc",
		Date: "2026-09-01", Start: "10:00", End: "11:00",
	}}
	ledger := &fakeLedger{}
	blob := &fakeBlobStore{url: "https://obs.example.com/sig/Kernel/123456789.mp4"}
	mailer := &fakeMailer{}
	p := NewIngestProcessor(meetings, ledger, blob, mailer, []string{"ops@example.com"}, nil)

	err := p.Process(context.Background(), ingestJob(t, srv.URL))
	require.NoError(t, err)

	assert.Equal(t, 1, blob.uploads)
	assert.Equal(t, "sig/Kernel/123456789.mp4", blob.key)
	assert.Equal(t, int64(len(body)), blob.size)
	assert.Equal(t, "123456789", blob.metadata["mid"])
	assert.Equal(t, "2026-09-01", blob.metadata["date"])
	assert.Equal(t, 1, ledger.created)
	assert.Equal(t, blob.url, meetings.replay)
	require.Len(t, mailer.sent, 1)
}

func TestIngestSkipsArchivedRecording(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not really an mp4"))
	}))
	defer srv.Close()

	meetings := &fakeReplaySetter{meeting: &models.Meeting{MID: "123456789"}}
	ledger := &fakeLedger{existing: true}
	p := NewIngestProcessor(meetings, ledger, nil, &fakeMailer{}, nil, nil)

	err := p.Process(context.Background(), ingestJob(t, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.lookups)
	assert.Zero(t, ledger.created)
	assert.Empty(t, meetings.replay)
}

func TestIngestDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ledger := &fakeLedger{}
	p := NewIngestProcessor(&fakeReplaySetter{meeting: &models.Meeting{}}, ledger, nil, &fakeMailer{}, nil, nil)

	err := p.Process(context.Background(), ingestJob(t, srv.URL))
	require.Error(t, err)
	assert.Zero(t, ledger.lookups)
}

func TestIngestRejectsForeignJob(t *testing.T) {
	p := NewIngestProcessor(&fakeReplaySetter{}, &fakeLedger{}, nil, &fakeMailer{}, nil, nil)
	err := p.Process(context.Background(), &queue.Job{Type: queue.JobTypeInviteEmail})
	assert.Error(t, err)
}
