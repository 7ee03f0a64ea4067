package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueNotify is the Redis list key for notification jobs.
	QueueNotify = "worker:notify"
	// QueueIngest is the Redis list key for recording ingest jobs.
	QueueIngest = "worker:ingest"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeInviteEmail     JobType = "invite_email"
	JobTypeSubscribePush   JobType = "subscribe_push"
	JobTypeCancelNotice    JobType = "cancel_notice"
	JobTypeRecordingIngest JobType = "recording_ingest"
)

// InviteEmailPayload asks the worker to send calendar invites for a meeting.
type InviteEmailPayload struct {
	MID    string `json:"mid"`
	Record bool   `json:"record"`
}

// SubscribePushPayload asks the worker to push a "new meeting" message.
type SubscribePushPayload struct {
	MID string `json:"mid"`
}

// CancelNoticePayload asks the worker to notify favoriters of a cancelled
// meeting and drop their bookmarks.
type CancelNoticePayload struct {
	MID string `json:"mid"`
}

// RecordingIngestPayload asks the worker to fetch a finished recording and
// archive it to object storage.
type RecordingIngestPayload struct {
	MID         string `json:"mid"`
	MeetingCode string `json:"meeting_code"`
	DownloadURL string `json:"download_url"`
	ObjectKey   string `json:"object_key"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func (q *Queue) enqueue(ctx context.Context, key string, typ JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(typ)))
	return nil
}

// EnqueueInviteEmail enqueues a calendar invite email job.
func (q *Queue) EnqueueInviteEmail(ctx context.Context, mid string, record bool) error {
	return q.enqueue(ctx, QueueNotify, JobTypeInviteEmail, InviteEmailPayload{MID: mid, Record: record})
}

// EnqueueSubscribePush enqueues a "new meeting" push job.
func (q *Queue) EnqueueSubscribePush(ctx context.Context, mid string) error {
	return q.enqueue(ctx, QueueNotify, JobTypeSubscribePush, SubscribePushPayload{MID: mid})
}

// EnqueueCancelNotice enqueues a cancellation notice job.
func (q *Queue) EnqueueCancelNotice(ctx context.Context, mid string) error {
	return q.enqueue(ctx, QueueNotify, JobTypeCancelNotice, CancelNoticePayload{MID: mid})
}

// EnqueueRecordingIngest enqueues a recording ingest job.
func (q *Queue) EnqueueRecordingIngest(ctx context.Context, payload RecordingIngestPayload) error {
	return q.enqueue(ctx, QueueIngest, JobTypeRecordingIngest, payload)
}

// Dequeue blocks until a job is available on any work queue or ctx is done.
// Returns the job and the queue key it came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueNotify, QueueIngest).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job on its original queue with incremented attempt.
// If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job, key string) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if key == "" {
		key = QueueNotify
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
