package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationState tracks where a conversation sits in its lifecycle.
// The only legal transition is current -> archived; archived conversations
// are immutable.
type ConversationState string

const (
	ConversationStateCurrent  ConversationState = "current"
	ConversationStateArchived ConversationState = "archived"
)

// Priority is the handling priority derived from classification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// MessageRole identifies who authored a message.
type MessageRole string

const (
	RoleCustomer  MessageRole = "customer"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Conversation is a time-bounded thread of messages for one customer.
// PeriodKey is fixed at creation and never changes; MessageCount is kept
// equal to the number of child messages by the store's atomic append.
type Conversation struct {
	ID            uuid.UUID         `json:"id"`
	TenantID      uuid.UUID         `json:"tenant_id"`
	CustomerID    uuid.UUID         `json:"customer_id"`
	PeriodKey     PeriodKey         `json:"period_key"`
	State         ConversationState `json:"state"`
	Category      Category          `json:"category,omitempty"`
	Priority      Priority          `json:"priority"`
	Tags          []string          `json:"tags,omitempty"`
	Subject       string            `json:"subject,omitempty"`
	MessageCount  int               `json:"message_count"`
	LastMessageAt *time.Time        `json:"last_message_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Message is one utterance in a conversation. Messages are append-only:
// once written they are never edited or deleted.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Platform       string      `json:"platform,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// ValidRole reports whether r is a known message role.
func ValidRole(r MessageRole) bool {
	switch r {
	case RoleCustomer, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}
