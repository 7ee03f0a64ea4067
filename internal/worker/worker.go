package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/communitymeet/backend/pkg/queue"
)

// Worker drains the job queues: dequeue, dispatch by type, retry on error.
type Worker struct {
	queue         *queue.Queue
	notifications *NotificationProcessor
	ingest        *IngestProcessor
	logger        *zap.Logger
}

// New creates the worker loop over both processors.
func New(q *queue.Queue, notifications *NotificationProcessor, ingest *IngestProcessor, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: q, notifications: notifications, ingest: ingest, logger: logger}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		default:
		}

		job, key, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		w.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := w.process(ctx, job); err != nil {
			w.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
			if reErr := w.queue.Retry(ctx, job, key); reErr != nil {
				w.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) error {
	if job.Type == queue.JobTypeRecordingIngest {
		return w.ingest.Process(ctx, job)
	}
	return w.notifications.Process(ctx, job)
}
