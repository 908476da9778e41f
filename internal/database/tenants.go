package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
)

// TenantRepository handles tenant reads and counter updates. Tenant
// creation happens here only for operator tooling; the public API never
// creates tenants.
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, api_key_hash, retention_periods, custom_prompt,
	auto_respond_threshold, conversation_count, message_count, created_at, updated_at`

func scanTenant(row *sql.Row) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.APIKeyHash,
		&t.RetentionPeriods,
		&t.CustomPrompt,
		&t.AutoRespondThreshold,
		&t.ConversationCount,
		&t.MessageCount,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a tenant. Used by the admin CLI and tests.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, api_key_hash, retention_periods, custom_prompt,
			auto_respond_threshold, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	if tenant.RetentionPeriods <= 0 {
		tenant.RetentionPeriods = models.DefaultRetentionPeriods
	}
	if tenant.AutoRespondThreshold <= 0 {
		tenant.AutoRespondThreshold = models.DefaultAutoRespondThreshold
	}
	_, err := r.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.APIKeyHash,
		tenant.RetentionPeriods,
		tenant.CustomPrompt,
		tenant.AutoRespondThreshold,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	tenant, err := scanTenant(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("tenant", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// GetByAPIKeyHash looks a tenant up by its hashed API key. Used by the
// auth middleware.
func (r *TenantRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE api_key_hash = $1`
	tenant, err := scanTenant(r.db.QueryRowContext(ctx, query, hash))
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("tenant", "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant by api key: %w", err)
	}
	return tenant, nil
}

// SetRetention updates the tenant's retention window.
func (r *TenantRepository) SetRetention(ctx context.Context, id uuid.UUID, periods int) error {
	if periods <= 0 {
		return errs.Invalid("retention_periods", "must be positive")
	}
	query := `UPDATE tenants SET retention_periods = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, periods, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update retention: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NotFound("tenant", id.String())
	}
	return nil
}

// IncrementCounters atomically bumps the tenant's aggregate counters.
// The increments happen in SQL so concurrent writers never lose updates.
func (r *TenantRepository) IncrementCounters(ctx context.Context, id uuid.UUID, conversations, messages int64) error {
	query := `
		UPDATE tenants
		SET conversation_count = conversation_count + $2,
		    message_count = message_count + $3,
		    updated_at = $4
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, conversations, messages, time.Now()); err != nil {
		return fmt.Errorf("failed to increment tenant counters: %w", err)
	}
	return nil
}
