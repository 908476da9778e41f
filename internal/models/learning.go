package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackCategory is a human reviewer's verdict on one AI response.
type FeedbackCategory string

const (
	FeedbackGood  FeedbackCategory = "good"
	FeedbackOK    FeedbackCategory = "ok"
	FeedbackPoor  FeedbackCategory = "poor"
	FeedbackWrong FeedbackCategory = "wrong"
)

// Feedback is the optional human rating attached to a learning record
// after the fact. Rating is 1-5.
type Feedback struct {
	Rating    int              `json:"rating"`
	Helpful   bool             `json:"helpful"`
	Category  FeedbackCategory `json:"category,omitempty"`
	Comment   string           `json:"comment,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Negative reports whether the feedback should trigger failure analysis.
func (f *Feedback) Negative() bool {
	if f == nil {
		return false
	}
	return f.Rating <= 2 || f.Category == FeedbackPoor || f.Category == FeedbackWrong
}

// LearningRecord logs one AI turn: what came in, what context was
// available, how it was classified, and what went out. Records are
// append-only; only the Feedback fields are filled in later.
type LearningRecord struct {
	ID               uuid.UUID `json:"id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	CustomerID       uuid.UUID `json:"customer_id"`
	ConversationID   uuid.UUID `json:"conversation_id,omitempty"`
	InputText        string    `json:"input_text"`
	Platform         string    `json:"platform,omitempty"`
	Category         Category  `json:"category,omitempty"`
	Sentiment        Sentiment `json:"sentiment,omitempty"`
	Confidence       float64   `json:"confidence"`
	ContextQuality   int       `json:"context_quality"`
	ContextMessages  int       `json:"context_messages"`
	ContextSummaries int       `json:"context_summaries"`
	HadCustomPrompt  bool      `json:"had_custom_prompt"`
	Responded        bool      `json:"responded"`
	ResponseText     string    `json:"response_text,omitempty"`
	LatencyMS        int64     `json:"latency_ms"`
	Feedback         *Feedback `json:"feedback,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// FailureAnalysis captures the candidate causes and suggested actions
// derived from one negative feedback event. Exactly one analysis is
// created per triggering feedback.
type FailureAnalysis struct {
	ID               uuid.UUID `json:"id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	LearningRecordID uuid.UUID `json:"learning_record_id"`
	Causes           []string  `json:"causes"`
	Actions          []string  `json:"actions"`
	CreatedAt        time.Time `json:"created_at"`
}
