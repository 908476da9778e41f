package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Scheduler enqueues background jobs from the request and archival paths.
// Delivery is at-least-once; handlers must be idempotent.
type Scheduler struct {
	queue JobQueue
}

// NewScheduler creates a scheduler over a job queue.
func NewScheduler(q JobQueue) *Scheduler {
	return &Scheduler{queue: q}
}

// ScheduleProfileRefresh enqueues a profile refresh for one customer.
func (s *Scheduler) ScheduleProfileRefresh(ctx context.Context, tenantID, customerID uuid.UUID) error {
	job := NewJob(JobTypeProfileRefresh, tenantID, &customerID)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue profile refresh: %w", err)
	}
	return nil
}

// ScheduleArchival enqueues an archival run for one tenant, optionally
// scoped to a single customer.
func (s *Scheduler) ScheduleArchival(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) (*Job, error) {
	job := NewJob(JobTypeArchiveTenant, tenantID, customerID)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue archival: %w", err)
	}
	return job, nil
}
