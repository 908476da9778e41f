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

// LearningRepository handles learning records and failure analyses.
// Records are append-only; only the feedback column is updated later.
type LearningRepository struct {
	db *DB
}

// NewLearningRepository creates a new learning repository.
func NewLearningRepository(db *DB) *LearningRepository {
	return &LearningRepository{db: db}
}

// CreateRecord appends a learning record.
func (r *LearningRepository) CreateRecord(ctx context.Context, record *models.LearningRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	query := `
		INSERT INTO learning_records (id, tenant_id, customer_id, conversation_id,
			input_text, platform, category, sentiment, confidence, context_quality,
			context_messages, context_summaries, had_custom_prompt, responded,
			response_text, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	var conversationID any
	if record.ConversationID != uuid.Nil {
		conversationID = record.ConversationID
	}
	now := time.Now()
	record.CreatedAt = now
	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.TenantID,
		record.CustomerID,
		conversationID,
		record.InputText,
		record.Platform,
		string(record.Category),
		string(record.Sentiment),
		record.Confidence,
		record.ContextQuality,
		record.ContextMessages,
		record.ContextSummaries,
		record.HadCustomPrompt,
		record.Responded,
		record.ResponseText,
		record.LatencyMS,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create learning record: %w", err)
	}
	return nil
}

// GetRecord retrieves one learning record by ID.
func (r *LearningRepository) GetRecord(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	query := `
		SELECT id, tenant_id, customer_id, conversation_id, input_text, platform,
			category, sentiment, confidence, context_quality, context_messages,
			context_summaries, had_custom_prompt, responded, response_text,
			latency_ms, feedback, created_at
		FROM learning_records
		WHERE id = $1
	`
	record, err := scanLearningRecord(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("learning record", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning record: %w", err)
	}
	return record, nil
}

func scanLearningRecord(scanner interface{ Scan(...any) error }) (*models.LearningRecord, error) {
	record := &models.LearningRecord{}
	var conversationID uuid.NullUUID
	var feedbackJSON []byte
	err := scanner.Scan(
		&record.ID,
		&record.TenantID,
		&record.CustomerID,
		&conversationID,
		&record.InputText,
		&record.Platform,
		&record.Category,
		&record.Sentiment,
		&record.Confidence,
		&record.ContextQuality,
		&record.ContextMessages,
		&record.ContextSummaries,
		&record.HadCustomPrompt,
		&record.Responded,
		&record.ResponseText,
		&record.LatencyMS,
		&feedbackJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if conversationID.Valid {
		record.ConversationID = conversationID.UUID
	}
	if len(feedbackJSON) > 0 {
		var fb models.Feedback
		if err := json.Unmarshal(feedbackJSON, &fb); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
		record.Feedback = &fb
	}
	return record, nil
}

// AttachFeedback writes feedback onto an existing record owned by the
// tenant. Feedback is only ever attached, never removed.
func (r *LearningRepository) AttachFeedback(ctx context.Context, tenantID, id uuid.UUID, feedback *models.Feedback) error {
	feedbackJSON, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	query := `UPDATE learning_records SET feedback = $3 WHERE id = $1 AND tenant_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, tenantID, feedbackJSON)
	if err != nil {
		return fmt.Errorf("failed to attach feedback: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NotFound("learning record", id.String())
	}
	return nil
}

// ListRecordsSince returns a tenant's learning records created after the
// given instant, oldest first.
func (r *LearningRepository) ListRecordsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*models.LearningRecord, error) {
	query := `
		SELECT id, tenant_id, customer_id, conversation_id, input_text, platform,
			category, sentiment, confidence, context_quality, context_messages,
			context_summaries, had_custom_prompt, responded, response_text,
			latency_ms, feedback, created_at
		FROM learning_records
		WHERE tenant_id = $1 AND created_at >= $2
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning records: %w", err)
	}
	defer rows.Close()

	var records []*models.LearningRecord
	for rows.Next() {
		record, err := scanLearningRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learning record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning records: %w", err)
	}
	return records, nil
}

// CreateFailureAnalysis persists one failure analysis. The uniqueness
// constraint on learning_record_id makes a second analysis for the same
// record a no-op rather than a duplicate.
func (r *LearningRepository) CreateFailureAnalysis(ctx context.Context, analysis *models.FailureAnalysis) error {
	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	query := `
		INSERT INTO failure_analyses (id, tenant_id, learning_record_id, causes, actions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (learning_record_id) DO NOTHING
	`
	now := time.Now()
	analysis.CreatedAt = now
	_, err := r.db.ExecContext(ctx, query,
		analysis.ID,
		analysis.TenantID,
		analysis.LearningRecordID,
		pq.Array(analysis.Causes),
		pq.Array(analysis.Actions),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create failure analysis: %w", err)
	}
	return nil
}
