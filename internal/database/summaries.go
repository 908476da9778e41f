package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
)

// SummaryRepository handles period summaries. Uniqueness per (customer,
// period) is enforced by the table constraint, so racing creators collapse
// to a single row.
type SummaryRepository struct {
	db *DB
}

// NewSummaryRepository creates a new summary repository.
func NewSummaryRepository(db *DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Exists reports whether a summary already exists for the given customer
// and period. The archival pipeline uses this for its idempotent skip.
func (r *SummaryRepository) Exists(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM summaries WHERE customer_id = $1 AND period_key = $2)`
	if err := r.db.QueryRowContext(ctx, query, customerID, string(period)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check summary existence: %w", err)
	}
	return exists, nil
}

// ListRecent returns the customer's newest summaries, most recent period
// first, capped at limit.
func (r *SummaryRepository) ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Summary, error) {
	query := `
		SELECT id, tenant_id, customer_id, period_key, summary_text,
			message_count, conversation_count, created_at
		FROM summaries
		WHERE customer_id = $1
		ORDER BY period_key DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.Summary
	for rows.Next() {
		s := &models.Summary{}
		err := rows.Scan(
			&s.ID,
			&s.TenantID,
			&s.CustomerID,
			&s.PeriodKey,
			&s.Text,
			&s.MessageCount,
			&s.ConversationCount,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return summaries, nil
}

// CreateWithArchival persists the summary and flips every conversation of
// its group to ARCHIVED in one transaction, so a group is either fully
// archived with its summary or untouched. A duplicate (customer, period)
// insert hits the uniqueness constraint and returns a ConflictError
// without archiving anything.
func (r *SummaryRepository) CreateWithArchival(ctx context.Context, summary *models.Summary, conversationIDs []uuid.UUID) error {
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}
	if len(conversationIDs) == 0 {
		return errs.Invalid("conversation_ids", "archival group is empty")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insert := `
		INSERT INTO summaries (id, tenant_id, customer_id, period_key, summary_text,
			message_count, conversation_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (customer_id, period_key) DO NOTHING
	`
	now := time.Now()
	summary.CreatedAt = now
	result, err := tx.ExecContext(ctx, insert,
		summary.ID,
		summary.TenantID,
		summary.CustomerID,
		string(summary.PeriodKey),
		summary.Text,
		summary.MessageCount,
		summary.ConversationCount,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		return errs.Conflict(fmt.Sprintf("summary for customer %s period %s already exists",
			summary.CustomerID, summary.PeriodKey))
	}

	archive := `
		UPDATE conversations
		SET state = 'archived', updated_at = $2
		WHERE id = ANY($1) AND state = 'current'
	`
	if _, err := tx.ExecContext(ctx, archive, pq.Array(conversationIDs), now); err != nil {
		return fmt.Errorf("failed to archive conversation group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archival: %w", err)
	}
	return nil
}
