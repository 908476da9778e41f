package ai

import (
	"context"

	"github.com/supportmind/memory-core/internal/models"
)

// Provider is the interface for AI providers
type Provider interface {
	// Summarize condenses a customer's archived conversations for one
	// period into a short plain-text summary
	Summarize(ctx context.Context, req *SummaryRequest) (string, error)

	// GenerateProfile distills a customer's period summaries into a
	// durable profile (summary text plus structured attributes)
	GenerateProfile(ctx context.Context, req *ProfileRequest) (*ProfileResult, error)

	// GenerateResponse produces a draft reply from an assembled context prompt
	GenerateResponse(ctx context.Context, prompt string, userMessage string) (string, error)

	// Classify asks the model to categorize ambiguous message text
	Classify(ctx context.Context, text string) (*models.Classification, error)
}

// SummaryRequest carries everything the provider needs to summarize one
// customer-period group of conversations.
type SummaryRequest struct {
	CustomerName string
	PeriodKey    models.PeriodKey
	Messages     []models.Message
	CustomPrompt string // optional tenant-specific summarization instructions
}

// ProfileRequest carries the inputs for a profile refresh.
type ProfileRequest struct {
	Customer  *models.Customer
	Summaries []models.Summary
}

// ProfileResult is the structured output of a profile refresh.
type ProfileResult struct {
	Summary     string         `json:"summary"`
	Preferences map[string]any `json:"preferences,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Insights    []string       `json:"insights,omitempty"`
}

// ProviderFactory creates an AI provider based on the provider type
type ProviderFactory func(config map[string]string) (Provider, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (Provider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
