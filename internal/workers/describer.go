package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/queue"
	"github.com/studygenius/studygenius/internal/services/ai"
	"github.com/studygenius/studygenius/internal/session"
	"go.uber.org/zap"
)

// DescriptionGenerator produces a document description, surfacing errors
type DescriptionGenerator interface {
	Describe(ctx context.Context, doc *models.Document) (string, error)
}

// Describer processes document description jobs. It loads the session
// snapshot, asks the model for a description, and writes the result back
// into the snapshot.
type Describer struct {
	generator DescriptionGenerator
	store     session.Store
	jobQueue  queue.JobQueue // For re-enqueueing jobs with delays
	logger    *zap.Logger
}

// NewDescriber creates a new describer worker
func NewDescriber(generator DescriptionGenerator, store session.Store, jobQueue queue.JobQueue, logger *zap.Logger) *Describer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Describer{
		generator: generator,
		store:     store,
		jobQueue:  jobQueue,
		logger:    logger,
	}
}

// ProcessDescribeJob generates a description for the job's document and
// persists it into the session snapshot
func (d *Describer) ProcessDescribeJob(ctx context.Context, job *queue.Job) error {
	if job.SessionID == "" {
		return fmt.Errorf("session_id is required for describe job")
	}

	snap, err := d.store.LoadSnapshot(ctx, job.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		// Session was cleared since the job was queued; nothing to do
		d.logger.Info("skipping describe job, session gone",
			zap.String("session_id", job.SessionID),
			zap.String("job_id", job.ID.String()),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session snapshot: %w", err)
	}

	if !snap.HasDocument() {
		d.logger.Info("skipping describe job, no document loaded",
			zap.String("session_id", job.SessionID),
		)
		return nil
	}

	// The document may have been replaced since the job was queued
	if job.DocumentName != "" && snap.Document.Name != job.DocumentName {
		d.logger.Info("skipping describe job, document replaced",
			zap.String("session_id", job.SessionID),
			zap.String("queued_document", job.DocumentName),
			zap.String("current_document", snap.Document.Name),
		)
		return nil
	}

	description, err := d.generator.Describe(ctx, snap.Document)
	if err != nil {
		return fmt.Errorf("failed to generate description: %w", err)
	}

	// Re-read before writing: the snapshot may have moved while the model
	// call was in flight
	current, err := d.store.LoadSnapshot(ctx, job.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload session snapshot: %w", err)
	}
	if !current.HasDocument() || current.Document.Name != snap.Document.Name {
		return nil
	}

	current.Description = description
	current.SavedAt = time.Now().UTC()
	if err := d.store.SaveSnapshot(ctx, job.SessionID, current); err != nil {
		return fmt.Errorf("failed to save description: %w", err)
	}

	d.logger.Info("document described",
		zap.String("session_id", job.SessionID),
		zap.String("document", snap.Document.Name),
		zap.Int("description_length", len(description)),
	)
	return nil
}

// ProcessJob processes a job based on its type
func (d *Describer) ProcessJob(ctx context.Context, msg *queue.Message) error {
	job := msg.Job

	// Check if job should be processed now (respect NotBefore)
	if !job.ShouldProcess() {
		d.logger.Info("job not ready yet, skipping",
			zap.String("job_id", job.ID.String()),
			zap.Timep("not_before", job.NotBefore),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			d.logger.Warn("failed to ack job for later processing", zap.Error(ackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeDescribeDocument:
		if err := d.ProcessDescribeJob(ctx, job); err != nil {
			return d.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			d.logger.Warn("failed to nack unknown job type", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError handles errors from job processing with retry logic tuned
// to how the upstream API fails
func (d *Describer) handleJobError(ctx context.Context, msg *queue.Message, job *queue.Job, err error) error {
	// Quota exhaustion: re-enqueue far in the future instead of hammering
	if ai.IsQuotaError(err) {
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)
		notBefore := time.Now().Add(retryDelay)

		d.logger.Warn("quota exceeded, re-enqueueing with delay",
			zap.String("job_id", job.ID.String()),
			zap.Time("not_before", notBefore),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)

		delayedJob := d.delayedCopy(job, notBefore)

		if ackErr := msg.Ack(); ackErr != nil {
			d.logger.Warn("failed to ack job before re-enqueue", zap.Error(ackErr))
		}

		if d.jobQueue != nil {
			if enqueueErr := d.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				return fmt.Errorf("quota exhausted, failed to re-enqueue: %w", enqueueErr)
			}
			return nil
		}

		if nackErr := msg.Nack(false); nackErr != nil {
			d.logger.Warn("failed to nack quota error job", zap.Error(nackErr))
		}
		return fmt.Errorf("quota exhausted (job %s): %w", job.ID, err)
	}

	// Rate limits: retry with backoff through the delayed exchange
	if ai.IsRateLimitError(err) {
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)

		if job.CanRetry() && d.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := d.delayedCopy(job, notBefore)

			if ackErr := msg.Ack(); ackErr != nil {
				d.logger.Warn("failed to ack rate limited job", zap.Error(ackErr))
			}

			if enqueueErr := d.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				if nackErr := msg.Nack(true); nackErr != nil {
					d.logger.Warn("failed to nack rate limited job", zap.Error(nackErr))
				}
				return fmt.Errorf("rate limited, failed to re-enqueue: %w", enqueueErr)
			}

			d.logger.Warn("rate limited, re-enqueued with delay",
				zap.String("job_id", job.ID.String()),
				zap.Time("not_before", notBefore),
				zap.Duration("retry_delay", retryDelay),
			)
			return nil
		}

		if job.CanRetry() {
			job.IncrementRetry()
			if nackErr := msg.Nack(true); nackErr != nil {
				d.logger.Warn("failed to nack rate limited job", zap.Error(nackErr))
			}
			return fmt.Errorf("rate limited (will retry): %w", err)
		}
	}

	// Other errors: standard retry, then DLQ
	if job.CanRetry() {
		job.IncrementRetry()
		d.logger.Warn("describe job failed, will retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)
		if nackErr := msg.Nack(true); nackErr != nil {
			d.logger.Warn("failed to nack job", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	d.logger.Error("describe job failed after max retries, sending to DLQ",
		zap.String("job_id", job.ID.String()),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err),
	)
	d.writeFallbackDescription(ctx, job)
	if nackErr := msg.Nack(false); nackErr != nil {
		d.logger.Warn("failed to nack job to DLQ", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}

// writeFallbackDescription marks the document as described with the fixed
// fallback text so the dashboard stops waiting on a job that will never
// succeed. Best effort; a still-empty description is also handled client-side.
func (d *Describer) writeFallbackDescription(ctx context.Context, job *queue.Job) {
	snap, err := d.store.LoadSnapshot(ctx, job.SessionID)
	if err != nil {
		return
	}
	if !snap.HasDocument() || snap.Description != "" {
		return
	}
	if job.DocumentName != "" && snap.Document.Name != job.DocumentName {
		return
	}
	snap.Description = ai.DescriptionFallback
	snap.SavedAt = time.Now().UTC()
	if err := d.store.SaveSnapshot(ctx, job.SessionID, snap); err != nil {
		d.logger.Warn("failed to save fallback description",
			zap.String("session_id", job.SessionID),
			zap.Error(err),
		)
	}
}

// delayedCopy clones a job with a bumped retry count and a NotBefore gate
func (d *Describer) delayedCopy(job *queue.Job, notBefore time.Time) *queue.Job {
	return &queue.Job{
		ID:           job.ID,
		Type:         job.Type,
		SessionID:    job.SessionID,
		DocumentName: job.DocumentName,
		NotBefore:    &notBefore,
		NotAfter:     job.NotAfter,
		Metadata:     job.Metadata,
		CreatedAt:    job.CreatedAt,
		RetryCount:   job.RetryCount + 1,
		MaxRetries:   job.MaxRetries,
	}
}
