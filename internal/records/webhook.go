package records

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/provider"
	"github.com/communitymeet/backend/pkg/queue"
	"github.com/communitymeet/backend/pkg/response"
	"github.com/communitymeet/backend/pkg/storage"
)

// MeetingFinder resolves a live meeting by provider meeting code.
type MeetingFinder interface {
	GetLiveByMID(ctx context.Context, mid string) (*models.Meeting, error)
}

// DownloadResolver turns a record file id into a short-lived download URL.
type DownloadResolver interface {
	RecordDownloadURL(ctx context.Context, recordFileID, userID string) (string, error)
}

// Gateways looks up the resolver for a platform.
type Gateways interface {
	Get(platform string) (provider.Gateway, error)
}

// Ingester schedules the download-and-archive of a finished recording.
type Ingester interface {
	EnqueueRecordingIngest(ctx context.Context, payload queue.RecordingIngestPayload) error
}

// Webhook handles recording-completed callbacks from the meeting provider.
type Webhook struct {
	meetings MeetingFinder
	gateways Gateways
	ingest   Ingester
	logger   *zap.Logger
}

// NewWebhook creates a recording webhook handler.
func NewWebhook(meetings MeetingFinder, gateways Gateways, ingest Ingester, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{meetings: meetings, gateways: gateways, ingest: ingest, logger: logger}
}

// Verify answers the provider's URL ownership check by echoing the decoded
// check string.
func (w *Webhook) Verify(c *gin.Context) {
	checkStr := c.Query("check_str")
	if checkStr == "" {
		c.String(http.StatusBadRequest, "missing check_str")
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(checkStr)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid check_str")
		return
	}
	c.String(http.StatusOK, string(decoded))
}

type webhookEnvelope struct {
	Data string `json:"data"`
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload []struct {
		MeetingInfo struct {
			MeetingID   string `json:"meeting_id"`
			MeetingCode string `json:"meeting_code"`
			Creator     struct {
				UserID string `json:"userid"`
			} `json:"creator"`
			StartTime int64 `json:"start_time"`
			EndTime   int64 `json:"end_time"`
		} `json:"meeting_info"`
		RecordingFiles []struct {
			RecordFileID string `json:"record_file_id"`
		} `json:"recording_files"`
	} `json:"payload"`
}

// Receive accepts a base64-wrapped recording event. Events without the
// fields of a completed recording are acknowledged as no-ops so the
// provider stops redelivering them. A failed download-URL resolution is an
// error response; the provider will redeliver and the pipeline stays
// idempotent through the size dedup check downstream.
func (w *Webhook) Receive(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == "" {
		response.BadRequest(c, "invalid webhook body")
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		response.BadRequest(c, "invalid webhook payload encoding")
		return
	}
	var ev webhookEvent
	if err := json.Unmarshal(decoded, &ev); err != nil {
		response.BadRequest(c, "invalid webhook payload")
		return
	}
	if len(ev.Payload) == 0 {
		response.OK(c, "successfully received callback")
		return
	}
	p := ev.Payload[0]
	info := p.MeetingInfo
	if info.MeetingID == "" || info.MeetingCode == "" || info.Creator.UserID == "" ||
		len(p.RecordingFiles) == 0 || p.RecordingFiles[0].RecordFileID == "" ||
		info.StartTime == 0 || info.EndTime == 0 {
		// Not a completed-recording event.
		response.OK(c, "successfully received callback")
		return
	}

	ctx := c.Request.Context()
	m, err := w.meetings.GetLiveByMID(ctx, info.MeetingCode)
	if err != nil {
		w.logger.Warn("recording webhook for unknown meeting", zap.String("meeting_code", info.MeetingCode), zap.Error(err))
		response.BadRequest(c, "unknown meeting")
		return
	}
	gw, err := w.gateways.Get(m.Platform)
	if err != nil {
		w.logger.Error("no gateway for platform", zap.String("platform", m.Platform), zap.Error(err))
		response.BadRequest(c, "unknown platform")
		return
	}
	downloadURL, err := gw.RecordDownloadURL(ctx, p.RecordingFiles[0].RecordFileID, info.Creator.UserID)
	if err != nil {
		w.logger.Error("resolve recording download url", zap.String("mid", m.MID), zap.Error(err))
		response.BadRequest(c, "failed to resolve recording address")
		return
	}

	payload := queue.RecordingIngestPayload{
		MID:         m.MID,
		MeetingCode: info.MeetingCode,
		DownloadURL: downloadURL,
		ObjectKey:   storage.RecordingKey(m.MeetingType, m.GroupName, info.MeetingCode),
	}
	if err := w.ingest.EnqueueRecordingIngest(ctx, payload); err != nil {
		w.logger.Error("enqueue recording ingest", zap.String("mid", m.MID), zap.Error(err))
		response.Internal(c, "failed to schedule ingest")
		return
	}
	response.OK(c, "successfully received callback")
}
