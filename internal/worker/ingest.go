package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/notify"
	"github.com/communitymeet/backend/pkg/queue"
)

// ReplaySetter records the final replay link on the meeting row.
type ReplaySetter interface {
	GetByMID(ctx context.Context, mid string) (*models.Meeting, error)
	SetReplayURL(ctx context.Context, mid, replayURL string) error
}

// RecordLedger is the archived-recording dedup ledger.
type RecordLedger interface {
	Exists(ctx context.Context, meetingCode string, fileSize int64) (bool, error)
	Create(ctx context.Context, meetingCode string, fileSize int64, downloadURL string) (*models.Record, error)
}

// BlobStore archives recording files. Implemented by storage.Store.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, metadata map[string]string) (string, error)
}

// IngestProcessor downloads finished recordings and archives them to object
// storage.
type IngestProcessor struct {
	meetings  ReplaySetter
	ledger    RecordLedger
	store     BlobStore
	mailer    Sender
	receivers []string
	http      *http.Client
	logger    *zap.Logger
}

// NewIngestProcessor creates a recording ingest processor. receivers is the
// operations mailbox list for recording-ready mail.
func NewIngestProcessor(meetings ReplaySetter, ledger RecordLedger, store BlobStore, mailer Sender, receivers []string, logger *zap.Logger) *IngestProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestProcessor{
		meetings:  meetings,
		ledger:    ledger,
		store:     store,
		mailer:    mailer,
		receivers: receivers,
		http:      &http.Client{Timeout: 10 * time.Minute},
		logger:    logger,
	}
}

// Process executes one recording ingest job: download to scratch, dedup by
// (meeting_code, file_size), upload, notify, record. An upload failure
// leaves no ledger row so a webhook redelivery retries cleanly.
func (p *IngestProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingIngest {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingIngestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	m, err := p.meetings.GetByMID(ctx, payload.MID)
	if err != nil {
		return fmt.Errorf("load meeting %s: %w", payload.MID, err)
	}

	scratch, size, err := p.download(ctx, payload.DownloadURL)
	if err != nil {
		return err
	}
	defer os.Remove(scratch)

	exists, err := p.ledger.Exists(ctx, payload.MeetingCode, size)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		p.logger.Info("recording already archived", zap.String("meeting_code", payload.MeetingCode), zap.Int64("size", size))
		return nil
	}

	f, err := os.Open(scratch)
	if err != nil {
		return fmt.Errorf("open scratch file: %w", err)
	}
	defer f.Close()
	metadata := map[string]string{
		"mid":       m.MID,
		"mmid":      m.MMID,
		"community": m.Community,
		"date":      m.Date,
		"start":     m.Start,
		"end":       m.End,
	}
	url, err := p.store.Upload(ctx, payload.ObjectKey, "video/mp4", f, size, metadata)
	if err != nil {
		return fmt.Errorf("archive recording: %w", err)
	}

	if len(p.receivers) > 0 {
		if err := p.mailer.Send(p.receivers, notify.RecordingSubject(m), notify.RecordingBody(m, url)); err != nil {
			p.logger.Error("recording-ready mail failed", zap.String("mid", m.MID), zap.Error(err))
		}
	}
	if _, err := p.ledger.Create(ctx, payload.MeetingCode, size, url); err != nil {
		return fmt.Errorf("record ledger insert: %w", err)
	}
	if err := p.meetings.SetReplayURL(ctx, m.MID, url); err != nil {
		p.logger.Error("set replay url failed", zap.String("mid", m.MID), zap.Error(err))
	}
	p.logger.Info("recording archived",
		zap.String("mid", m.MID), zap.String("key", payload.ObjectKey),
		zap.String("size", strconv.FormatInt(size, 10)))
	return nil
}

// download fetches the provider recording into a scratch file and returns
// its path and size.
func (p *IngestProcessor) download(ctx context.Context, url string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download recording: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("download status: %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "recording-*.mp4")
	if err != nil {
		return "", 0, fmt.Errorf("create scratch file: %w", err)
	}
	size, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("write scratch file: %w", err)
	}
	if closeErr != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("close scratch file: %w", closeErr)
	}
	return f.Name(), size, nil
}
