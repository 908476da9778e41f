package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/supportmind/memory-core/internal/archive"
	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/queue"
	"github.com/supportmind/memory-core/internal/services/ai"
)

// ArchivalRunner runs archival and profile-refresh work for a tenant.
// Implemented by archive.Pipeline.
type ArchivalRunner interface {
	Run(ctx context.Context, tenant *models.Tenant, customerID *uuid.UUID) (*archive.Report, error)
	RefreshProfile(ctx context.Context, tenant *models.Tenant, customerID uuid.UUID) error
}

// Archiver consumes archival and profile-refresh jobs from the queue.
type Archiver struct {
	pipeline ArchivalRunner
	tenants  database.TenantRepositoryInterface
	jobQueue queue.JobQueue
}

// NewArchiver creates a new archival worker.
func NewArchiver(
	pipeline ArchivalRunner,
	tenants database.TenantRepositoryInterface,
	jobQueue queue.JobQueue,
) *Archiver {
	return &Archiver{
		pipeline: pipeline,
		tenants:  tenants,
		jobQueue: jobQueue,
	}
}

// ProcessArchiveTenantJob archives expired conversation periods for a tenant.
// If the job carries a customer ID, only that customer is processed.
func (a *Archiver) ProcessArchiveTenantJob(ctx context.Context, job *queue.Job) error {
	tenant, err := a.tenants.GetByID(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant %s: %w", job.TenantID, err)
	}

	report, err := a.pipeline.Run(ctx, tenant, job.CustomerID)
	if err != nil {
		return fmt.Errorf("archival run failed for tenant %s: %w", job.TenantID, err)
	}

	log.Printf("Archival run for tenant %s: %d customers, %d groups archived, %d skipped, %d errored",
		job.TenantID, report.CustomersProcessed, report.GroupsArchived, report.GroupsSkipped, report.CustomersErrored)
	return nil
}

// ProcessProfileRefreshJob regenerates a customer profile from archived summaries.
func (a *Archiver) ProcessProfileRefreshJob(ctx context.Context, job *queue.Job) error {
	if job.CustomerID == nil {
		return fmt.Errorf("profile refresh job %s has no customer ID", job.ID)
	}

	tenant, err := a.tenants.GetByID(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant %s: %w", job.TenantID, err)
	}

	if err := a.pipeline.RefreshProfile(ctx, tenant, *job.CustomerID); err != nil {
		return fmt.Errorf("profile refresh failed for customer %s: %w", *job.CustomerID, err)
	}

	log.Printf("Refreshed profile for customer %s (tenant %s)", *job.CustomerID, job.TenantID)
	return nil
}

// ProcessJob processes a job based on its type
func (a *Archiver) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	// Check if job should be processed now (respect NotBefore)
	if !job.ShouldProcess() {
		log.Printf("Job %s not ready yet (NotBefore: %v), skipping", job.ID, job.NotBefore)
		// Re-ack to return to queue and wait
		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job for later processing: %v", ackErr)
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeArchiveTenant:
		if err := a.ProcessArchiveTenantJob(ctx, job); err != nil {
			return a.handleJobError(ctx, msg, job, err, "archival")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	case queue.JobTypeProfileRefresh:
		if err := a.ProcessProfileRefreshJob(ctx, job); err != nil {
			return a.handleJobError(ctx, msg, job, err, "profile refresh")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack profile refresh job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			log.Printf("Failed to nack unknown job type: %v", nackErr)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError handles errors from job processing with intelligent retry logic
func (a *Archiver) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error, jobType string) error {
	// Check if it's a quota error (should not retry immediately)
	if ai.IsQuotaError(err) {
		log.Printf("Quota exceeded for %s job %s: %v", jobType, job.ID, err)

		// For quota errors, re-enqueue with long delay (1 hour minimum)
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)
		notBefore := time.Now().Add(retryDelay)

		log.Printf("Re-enqueueing %s job %s with NotBefore=%v (quota exhausted, retry in %v)",
			jobType, job.ID, notBefore, retryDelay)

		// Create new job with delayed retry
		delayedJob := &queue.Job{
			ID:         job.ID,
			Type:       job.Type,
			TenantID:   job.TenantID,
			CustomerID: job.CustomerID,
			NotBefore:  &notBefore,
			NotAfter:   job.NotAfter,
			Metadata:   job.Metadata,
			CreatedAt:  job.CreatedAt,
			RetryCount: job.RetryCount + 1,
			MaxRetries: job.MaxRetries,
		}

		// Ack the current message
		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job before re-enqueue: %v", ackErr)
		}

		// Re-enqueue with delay using NotBefore (RabbitMQ delayed exchange will handle this)
		if a.jobQueue != nil {
			if enqueueErr := a.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue job %s with delay: %v", job.ID, enqueueErr)
				// If re-enqueue fails, send to DLQ
				return fmt.Errorf("quota exhausted, failed to re-enqueue: %w", enqueueErr)
			}
			log.Printf("Successfully re-enqueued %s job %s for retry at %v", jobType, job.ID, notBefore)
			return nil // Successfully handled
		}

		// If no queue access, nack without requeue to prevent spam
		log.Printf("Warning: No queue access, cannot re-enqueue job with delay. Sending to DLQ.")
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Printf("Failed to nack quota error job: %v", nackErr)
		}

		return fmt.Errorf("quota exhausted (job %s): %w", job.ID, err)
	}

	// Check if it's a rate limit error (should retry with backoff)
	if ai.IsRateLimitError(err) {
		log.Printf("Rate limited for %s job %s: %v", jobType, job.ID, err)

		retryDelay := ai.GetRetryDelay(err, job.RetryCount)

		// For rate limits, re-enqueue with delay using NotBefore
		if job.CanRetry() && a.jobQueue != nil {
			notBefore := time.Now().Add(retryDelay)
			delayedJob := &queue.Job{
				ID:         job.ID,
				Type:       job.Type,
				TenantID:   job.TenantID,
				CustomerID: job.CustomerID,
				NotBefore:  &notBefore,
				NotAfter:   job.NotAfter,
				Metadata:   job.Metadata,
				CreatedAt:  job.CreatedAt,
				RetryCount: job.RetryCount + 1,
				MaxRetries: job.MaxRetries,
			}

			if ackErr := msg.Ack(); ackErr != nil {
				log.Printf("Failed to ack rate-limited job before re-enqueue: %v", ackErr)
			}

			if enqueueErr := a.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
				log.Printf("Failed to re-enqueue rate-limited job %s: %v", job.ID, enqueueErr)
				return fmt.Errorf("rate limited, failed to re-enqueue: %w", enqueueErr)
			}

			log.Printf("Re-enqueued rate-limited %s job %s for retry at %v (attempt %d/%d)",
				jobType, job.ID, notBefore, delayedJob.RetryCount, delayedJob.MaxRetries)
			return nil
		}

		// Fall back to broker requeue if we can't schedule a delay
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack rate-limited job: %v", nackErr)
		}
		return fmt.Errorf("rate limited (job %s): %w", job.ID, err)
	}

	// Generic error: retry with broker requeue until attempts are exhausted
	if job.CanRetry() {
		job.IncrementRetry()
		log.Printf("Job %s failed (%s), retry %d/%d: %v", job.ID, jobType, job.RetryCount, job.MaxRetries, err)
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack job for retry: %v", nackErr)
		}
		return fmt.Errorf("%s failed (will retry): %w", jobType, err)
	}

	log.Printf("Job %s exhausted retries (%d/%d), sending to DLQ: %v", job.ID, job.RetryCount, job.MaxRetries, err)
	if nackErr := msg.Nack(false); nackErr != nil {
		log.Printf("Failed to nack exhausted job: %v", nackErr)
	}
	return fmt.Errorf("%s failed permanently: %w", jobType, err)
}
