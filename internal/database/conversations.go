package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
)

// ConversationRepository owns conversation and message persistence. The
// append path is the contended one: the message insert and the
// message_count increment are applied in a single transaction, with the
// increment expressed in SQL so concurrent appenders never lose updates.
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `id, tenant_id, customer_id, period_key, state, category,
	priority, tags, subject, message_count, last_message_at, created_at, updated_at`

func scanConversation(scanner interface{ Scan(...any) error }) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var tags pq.StringArray
	var lastMessageAt sql.NullTime
	err := scanner.Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.CustomerID,
		&conv.PeriodKey,
		&conv.State,
		&conv.Category,
		&conv.Priority,
		&tags,
		&conv.Subject,
		&conv.MessageCount,
		&lastMessageAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conv.Tags = []string(tags)
	if lastMessageAt.Valid {
		conv.LastMessageAt = &lastMessageAt.Time
	}
	return conv, nil
}

// Create inserts a new CURRENT conversation. The period key is stamped
// from the current wall clock when the caller left it empty, and is fixed
// for the conversation's lifetime.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.PeriodKey == "" {
		conv.PeriodKey = models.CurrentPeriod()
	}
	conv.State = models.ConversationStateCurrent
	if conv.Priority == "" {
		conv.Priority = models.PriorityNormal
	}

	query := `
		INSERT INTO conversations (id, tenant_id, customer_id, period_key, state,
			category, priority, tags, subject, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, query,
		conv.ID,
		conv.TenantID,
		conv.CustomerID,
		string(conv.PeriodKey),
		string(conv.State),
		string(conv.Category),
		string(conv.Priority),
		pq.Array(dedupeStrings(conv.Tags)),
		conv.Subject,
		now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errs.NotFound("customer", conv.CustomerID.String())
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation by ID.
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("conversation", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// AppendMessage appends a message and bumps the conversation counters in
// one transaction. The guarded UPDATE only matches CURRENT conversations,
// so writes against archived conversations fail with a ConflictError
// instead of mutating immutable history. Timestamps are clamped to the
// conversation's last_message_at so per-conversation order is monotonic.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var tenantID uuid.UUID
	var effectiveTS time.Time
	update := `
		UPDATE conversations
		SET message_count = message_count + 1,
		    last_message_at = GREATEST(COALESCE(last_message_at, $2::timestamptz), $2::timestamptz),
		    updated_at = $3
		WHERE id = $1 AND state = 'current'
		RETURNING tenant_id, last_message_at
	`
	err = tx.QueryRowContext(ctx, update, msg.ConversationID, msg.Timestamp, time.Now()).
		Scan(&tenantID, &effectiveTS)
	if err == sql.ErrNoRows {
		// Either the conversation does not exist or it is archived.
		var state string
		stateErr := tx.QueryRowContext(ctx,
			`SELECT state FROM conversations WHERE id = $1`, msg.ConversationID).Scan(&state)
		if stateErr == sql.ErrNoRows {
			return errs.NotFound("conversation", msg.ConversationID.String())
		}
		if stateErr != nil {
			return fmt.Errorf("failed to check conversation state: %w", stateErr)
		}
		return errs.Conflict("conversation " + msg.ConversationID.String() + " is archived")
	}
	if err != nil {
		return fmt.Errorf("failed to update conversation counters: %w", err)
	}

	msg.Timestamp = effectiveTS
	insert := `
		INSERT INTO messages (id, conversation_id, role, content, platform, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.ExecContext(ctx, insert,
		msg.ID,
		msg.ConversationID,
		string(msg.Role),
		msg.Content,
		msg.Platform,
		msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	bump := `UPDATE tenants SET message_count = message_count + 1 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bump, tenantID); err != nil {
		return fmt.Errorf("failed to bump tenant message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message append: %w", err)
	}
	return nil
}

// ListCurrent returns the CURRENT conversations for one customer and
// period, most recently active first.
func (r *ConversationRepository) ListCurrent(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) ([]*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE customer_id = $1 AND state = 'current' AND period_key = $2
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
	`
	return r.queryConversations(ctx, query, customerID, string(period))
}

// ListCurrentBefore returns the customer's CURRENT conversations whose
// period is strictly older than cutoff, ordered by period then creation.
// This is the archival pipeline's selection query.
func (r *ConversationRepository) ListCurrentBefore(ctx context.Context, customerID uuid.UUID, cutoff models.PeriodKey) ([]*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE customer_id = $1 AND state = 'current' AND period_key < $2
		ORDER BY period_key, created_at
	`
	return r.queryConversations(ctx, query, customerID, string(cutoff))
}

func (r *ConversationRepository) queryConversations(ctx context.Context, query string, args ...any) ([]*models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return conversations, nil
}

// GetMessages returns a conversation's messages oldest-to-newest. When
// limit is positive only the most recent limit messages are returned,
// still in chronological order.
func (r *ConversationRepository) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, platform, ts
		FROM messages
		WHERE conversation_id = $1
		ORDER BY ts, id
	`
	args := []any{conversationID}
	if limit > 0 {
		query = `
			SELECT id, conversation_id, role, content, platform, ts FROM (
				SELECT id, conversation_id, role, content, platform, ts
				FROM messages
				WHERE conversation_id = $1
				ORDER BY ts DESC, id DESC
				LIMIT $2
			) recent
			ORDER BY ts, id
		`
		args = append(args, limit)
	}
	return r.queryMessages(ctx, query, args...)
}

// ListRecentMessages returns the customer's most recent messages across
// all CURRENT conversations, newest first. Archived conversations are
// never read here; their content is only reachable through summaries.
func (r *ConversationRepository) ListRecentMessages(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.role, m.content, m.platform, m.ts
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.customer_id = $1 AND c.state = 'current'
		ORDER BY m.ts DESC, m.id DESC
		LIMIT $2
	`
	return r.queryMessages(ctx, query, customerID, limit)
}

func (r *ConversationRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.Platform,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// AddTags merges tags into the conversation with set-union semantics;
// re-adding an existing tag is a no-op.
func (r *ConversationRepository) AddTags(ctx context.Context, id uuid.UUID, tags []string) error {
	tags = dedupeStrings(tags)
	if len(tags) == 0 {
		return nil
	}
	query := `
		UPDATE conversations
		SET tags = (
			SELECT COALESCE(array_agg(DISTINCT t), '{}')
			FROM unnest(tags || $2::text[]) AS t
		), updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, pq.Array(tags), time.Now())
	if err != nil {
		return fmt.Errorf("failed to add tags: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NotFound("conversation", id.String())
	}
	return nil
}

// UpdateClassification stores classification metadata on the
// conversation. The subject is only set once, from the first classified
// message. Tags are merged, not replaced.
func (r *ConversationRepository) UpdateClassification(ctx context.Context, id uuid.UUID, c *models.Classification) error {
	query := `
		UPDATE conversations
		SET category = $2,
		    priority = $3,
		    subject = CASE WHEN subject = '' THEN $4 ELSE subject END,
		    tags = (
			SELECT COALESCE(array_agg(DISTINCT t), '{}')
			FROM unnest(tags || $5::text[]) AS t
		    ),
		    updated_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id,
		string(c.Category), string(c.Priority), c.Subject,
		pq.Array(dedupeStrings(c.Tags)), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NotFound("conversation", id.String())
	}
	return nil
}

// isForeignKeyViolation reports whether err is a postgres FK violation.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
