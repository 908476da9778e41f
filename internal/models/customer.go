package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is an end-user of one tenant's support channel. The Profile
// fields are the customer's durable memory: they survive archival and are
// the only link to history older than the retention window.
type Customer struct {
	ID               uuid.UUID      `json:"id"`
	TenantID         uuid.UUID      `json:"tenant_id"`
	Name             string         `json:"name,omitempty"`
	ExternalID       string         `json:"external_id,omitempty"`
	ProfileSummary   string         `json:"profile_summary,omitempty"`
	Preferences      map[string]any `json:"preferences,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Insights         []string       `json:"insights,omitempty"`
	ProfileUpdatedAt *time.Time     `json:"profile_updated_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasProfileSummary reports whether the free-text profile summary is set.
func (c *Customer) HasProfileSummary() bool {
	return c != nil && c.ProfileSummary != ""
}

// HasStructuredProfile reports whether any structured profile data
// (preferences, tags, or insights) is populated.
func (c *Customer) HasStructuredProfile() bool {
	if c == nil {
		return false
	}
	return len(c.Preferences) > 0 || len(c.Tags) > 0 || len(c.Insights) > 0
}
