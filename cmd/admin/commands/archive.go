package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supportmind/memory-core/internal/archive"
	"github.com/supportmind/memory-core/internal/config"
	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/queue"
	"github.com/supportmind/memory-core/internal/services/ai"
)

// NewArchiveCmd creates the archive command group
func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Run or preview archival for a tenant",
	}

	cmd.AddCommand(newArchiveRunCmd())

	return cmd
}

func newArchiveRunCmd() *cobra.Command {
	var tenantID string
	var customerID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Archive conversations that fell outside the tenant's retention window",
		Long:  "Runs the archival pipeline synchronously. With --dry-run the eligible customers are listed without archiving anything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTenantID(tenantID)
			if err != nil {
				return err
			}

			var customer *uuid.UUID
			if customerID != "" {
				parsed, err := uuid.Parse(customerID)
				if err != nil {
					return fmt.Errorf("invalid customer ID: %w", err)
				}
				customer = &parsed
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer closeDB(db)

			tenants := database.NewTenantRepository(db)
			customers := database.NewCustomerRepository(db)
			conversations := database.NewConversationRepository(db)

			ctx := context.Background()
			tenant, err := tenants.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get tenant: %w", err)
			}

			cutoff := archive.Cutoff(models.CurrentPeriod(), tenant.EffectiveRetention())
			fmt.Printf("Tenant: %s (%s)\n", tenant.Name, tenant.ID)
			fmt.Printf("Current period: %s, archival cutoff: %s\n", models.CurrentPeriod(), cutoff)

			if dryRun {
				return printArchivePreview(ctx, customers, conversations, tenant.ID, customer, cutoff)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
			if err != nil {
				return fmt.Errorf("failed to connect to message queue: %w", err)
			}
			defer func() { _ = jobQueue.Close() }()

			var locker archive.Locker
			if cfg.RedisURL != "" {
				opts, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					return fmt.Errorf("invalid REDIS_URL: %w", err)
				}
				locker = archive.NewRedisLocker(redis.NewClient(opts), archive.DefaultLockTTL, logger)
			}

			provider := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, logger, false)
			summaries := database.NewSummaryRepository(db)
			pipeline := archive.New(customers, conversations, summaries, provider, queue.NewScheduler(jobQueue), locker, logger)

			report, err := pipeline.Run(ctx, tenant, customer)
			if err != nil {
				return fmt.Errorf("archival run failed: %w", err)
			}

			fmt.Printf("Customers processed: %d\n", report.CustomersProcessed)
			fmt.Printf("Groups archived: %d\n", report.GroupsArchived)
			fmt.Printf("Conversations moved: %d\n", report.ConversationsMoved)
			fmt.Printf("Groups skipped: %d\n", report.GroupsSkipped)
			if report.CustomersErrored > 0 {
				fmt.Printf("Customers errored: %d\n", report.CustomersErrored)
				for _, e := range report.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&customerID, "customer", "", "Limit the run to a single customer")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List eligible customers without archiving")

	return cmd
}

func printArchivePreview(
	ctx context.Context,
	customers database.CustomerRepositoryInterface,
	conversations database.ConversationRepositoryInterface,
	tenantID uuid.UUID,
	customer *uuid.UUID,
	cutoff models.PeriodKey,
) error {
	var customerIDs []uuid.UUID
	if customer != nil {
		customerIDs = []uuid.UUID{*customer}
	} else {
		var err error
		customerIDs, err = customers.ListWithArchivableConversations(ctx, tenantID, cutoff)
		if err != nil {
			return fmt.Errorf("failed to list archivable customers: %w", err)
		}
	}

	if len(customerIDs) == 0 {
		fmt.Println("Nothing to archive")
		return nil
	}

	total := 0
	for _, cid := range customerIDs {
		convs, err := conversations.ListCurrentBefore(ctx, cid, cutoff)
		if err != nil {
			return fmt.Errorf("failed to list conversations for customer %s: %w", cid, err)
		}
		if len(convs) == 0 {
			continue
		}
		periods := map[models.PeriodKey]int{}
		for _, c := range convs {
			periods[c.PeriodKey]++
		}
		fmt.Printf("Customer %s: %d conversations in %d periods\n", cid, len(convs), len(periods))
		total += len(convs)
	}
	fmt.Printf("Dry run: %d conversations would be archived\n", total)

	return nil
}
