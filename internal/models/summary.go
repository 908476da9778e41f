package models

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the compressed narrative covering all of one customer's
// messages in one period. At most one summary exists per (customer,
// period); the archival pipeline creates it once the period's current
// conversations have been archived and never regenerates it.
type Summary struct {
	ID                uuid.UUID `json:"id"`
	TenantID          uuid.UUID `json:"tenant_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	PeriodKey         PeriodKey `json:"period_key"`
	Text              string    `json:"text"`
	MessageCount      int       `json:"message_count"`
	ConversationCount int       `json:"conversation_count"`
	CreatedAt         time.Time `json:"created_at"`
}
