package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/supportmind/memory-core/internal/config"
	"github.com/supportmind/memory-core/internal/database"
)

// NewTenantCmd creates the tenant command group
func NewTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenant configuration",
		Long:  "Inspect and adjust per-tenant retention and counters",
	}

	cmd.AddCommand(newTenantShowCmd())
	cmd.AddCommand(newTenantSetRetentionCmd())

	return cmd
}

func newTenantShowCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a tenant's configuration and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTenantID(tenantID)
			if err != nil {
				return err
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
			tenant, err := tenants.GetByID(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get tenant: %w", err)
			}

			fmt.Printf("Tenant: %s (%s)\n", tenant.Name, tenant.ID)
			fmt.Printf("Retention periods: %d\n", tenant.EffectiveRetention())
			fmt.Printf("Auto-respond threshold: %.2f\n", tenant.EffectiveAutoRespondThreshold())
			if tenant.CustomPrompt != "" {
				fmt.Printf("Custom prompt: %s\n", tenant.CustomPrompt)
			}
			fmt.Printf("Conversations: %d\n", tenant.ConversationCount)
			fmt.Printf("Messages: %d\n", tenant.MessageCount)
			fmt.Printf("Created: %s\n", tenant.CreatedAt.Format("2006-01-02 15:04:05"))

			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")

	return cmd
}

func newTenantSetRetentionCmd() *cobra.Command {
	var tenantID string
	var periods int

	cmd := &cobra.Command{
		Use:   "set-retention",
		Short: "Set how many calendar periods a tenant keeps conversations current",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTenantID(tenantID)
			if err != nil {
				return err
			}
			if periods < 1 {
				return fmt.Errorf("--periods must be at least 1")
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
			if err := tenants.SetRetention(context.Background(), id, periods); err != nil {
				return fmt.Errorf("failed to set retention: %w", err)
			}

			fmt.Printf("Retention for tenant %s set to %d periods\n", id, periods)

			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().IntVar(&periods, "periods", 0, "Retention window in calendar periods (required)")

	return cmd
}

func parseTenantID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--tenant is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant ID: %w", err)
	}
	return id, nil
}

func closeDB(db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}
