package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
)

// CustomerRepository handles customer and profile persistence.
type CustomerRepository struct {
	db *DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts a customer. Used by operator tooling and the ingestion
// layer; customer CRUD validation itself lives outside this core.
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (id, tenant_id, name, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		customer.ID,
		customer.TenantID,
		customer.Name,
		customer.ExternalID,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetByID retrieves a customer, scoped to a tenant so one tenant can never
// read another tenant's customers.
func (r *CustomerRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	customer := &models.Customer{}
	var preferencesJSON []byte
	var tags, insights pq.StringArray
	var profileUpdatedAt sql.NullTime

	query := `
		SELECT id, tenant_id, name, external_id, profile_summary, preferences,
			tags, insights, profile_updated_at, created_at, updated_at
		FROM customers
		WHERE id = $1 AND tenant_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&customer.ID,
		&customer.TenantID,
		&customer.Name,
		&customer.ExternalID,
		&customer.ProfileSummary,
		&preferencesJSON,
		&tags,
		&insights,
		&profileUpdatedAt,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("customer", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	if len(preferencesJSON) > 0 {
		if err := json.Unmarshal(preferencesJSON, &customer.Preferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	customer.Tags = []string(tags)
	customer.Insights = []string(insights)
	if profileUpdatedAt.Valid {
		customer.ProfileUpdatedAt = &profileUpdatedAt.Time
	}

	return customer, nil
}

// UpdateProfile replaces the customer's durable profile fields. Called by
// the archival pipeline's profile refresh.
func (r *CustomerRepository) UpdateProfile(ctx context.Context, id uuid.UUID, summary string, preferences map[string]any, tags, insights []string) error {
	preferencesJSON, err := json.Marshal(preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if preferences == nil {
		preferencesJSON = []byte("{}")
	}

	query := `
		UPDATE customers
		SET profile_summary = $2, preferences = $3, tags = $4, insights = $5,
		    profile_updated_at = $6, updated_at = $6
		WHERE id = $1
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, id, summary, preferencesJSON,
		pq.Array(dedupeStrings(tags)), pq.Array(dedupeStrings(insights)), now)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NotFound("customer", id.String())
	}
	return nil
}

// AddTags merges tags into the customer profile with set-union semantics.
func (r *CustomerRepository) AddTags(ctx context.Context, id uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	query := `
		UPDATE customers
		SET tags = (
			SELECT COALESCE(array_agg(DISTINCT t), '{}')
			FROM unnest(tags || $2::text[]) AS t
		), updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, pq.Array(tags), time.Now())
	if err != nil {
		return fmt.Errorf("failed to add customer tags: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NotFound("customer", id.String())
	}
	return nil
}

// ListWithArchivableConversations returns the IDs of customers in a tenant
// that still have CURRENT conversations older than the cutoff period.
// The archival pipeline iterates this list one customer at a time.
func (r *CustomerRepository) ListWithArchivableConversations(ctx context.Context, tenantID uuid.UUID, cutoff models.PeriodKey) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT customer_id
		FROM conversations
		WHERE tenant_id = $1 AND state = 'current' AND period_key < $2
		ORDER BY customer_id
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, string(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query archivable customers: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan customer id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}
	return ids, nil
}

// dedupeStrings removes duplicates while preserving first-seen order.
func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
