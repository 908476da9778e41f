package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRetentionPeriods is how many calendar periods a conversation
	// stays CURRENT before it becomes eligible for archival.
	DefaultRetentionPeriods = 2
	// DefaultAutoRespondThreshold is the minimum classification confidence
	// required before the responder answers without human review.
	DefaultAutoRespondThreshold = 0.6
)

// Tenant is an organization using the system. Tenants are created and
// maintained externally; this core only reads their configuration and
// bumps aggregate counters.
type Tenant struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	APIKeyHash           string    `json:"-"`
	RetentionPeriods     int       `json:"retention_periods"`
	CustomPrompt         string    `json:"custom_prompt,omitempty"`
	AutoRespondThreshold float64   `json:"auto_respond_threshold"`
	ConversationCount    int64     `json:"conversation_count"`
	MessageCount         int64     `json:"message_count"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EffectiveRetention returns the tenant's retention window, falling back
// to the default when unset.
func (t *Tenant) EffectiveRetention() int {
	if t == nil || t.RetentionPeriods <= 0 {
		return DefaultRetentionPeriods
	}
	return t.RetentionPeriods
}

// EffectiveAutoRespondThreshold returns the tenant's auto-respond
// confidence threshold, falling back to the default when unset.
func (t *Tenant) EffectiveAutoRespondThreshold() float64 {
	if t == nil || t.AutoRespondThreshold <= 0 {
		return DefaultAutoRespondThreshold
	}
	return t.AutoRespondThreshold
}
