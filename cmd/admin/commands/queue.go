package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/supportmind/memory-core/internal/config"
	"github.com/supportmind/memory-core/internal/queue"
)

// NewQueueCmd creates the queue command group
func NewQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Check the background job broker",
	}

	cmd.AddCommand(newQueueTestCmd())

	return cmd
}

func newQueueTestCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Verify broker connectivity",
		Long:  "Connects to RabbitMQ and runs a health check. With --tenant an archival job is enqueued so the full publish path is exercised.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
			if err != nil {
				return fmt.Errorf("failed to connect to message queue: %w", err)
			}
			defer func() { _ = jobQueue.Close() }()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := jobQueue.HealthCheck(ctx); err != nil {
				return fmt.Errorf("queue health check failed: %w", err)
			}
			fmt.Println("Queue connection healthy")

			if tenantID != "" {
				id, err := uuid.Parse(tenantID)
				if err != nil {
					return fmt.Errorf("invalid tenant ID: %w", err)
				}
				job, err := queue.NewScheduler(jobQueue).ScheduleArchival(ctx, id, nil)
				if err != nil {
					return fmt.Errorf("failed to enqueue archival job: %w", err)
				}
				fmt.Printf("Enqueued %s job %s for tenant %s\n", job.Type, job.ID, id)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Enqueue an archival job for this tenant")

	return cmd
}
