// Package assembler composes the bounded context an AI responder needs
// for one turn: the customer's durable profile, recent current-period
// messages, and the most recent period summaries, plus a quality score
// used to gate auto-response.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/models"
)

const (
	// DefaultRecentMessageLimit caps the current-period messages included
	// in an assembled context.
	DefaultRecentMessageLimit = 20
	// DefaultSummaryLimit is how many recent period summaries are included.
	DefaultSummaryLimit = 3

	// MinMessagesForFullScore is the recent-message count at which the
	// message bucket of the quality score is earned.
	MinMessagesForFullScore = 5
	// bucketWeight is the contribution of each quality bucket.
	bucketWeight = 25
)

// Assembler builds response contexts from the conversation store.
type Assembler struct {
	customers     database.CustomerRepositoryInterface
	conversations database.ConversationRepositoryInterface
	summaries     database.SummaryRepositoryInterface
	logger        *zap.Logger
	recentLimit   int
	summaryLimit  int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRecentMessageLimit overrides the default cap on recent messages
// included in a context. Non-positive values keep the default.
func WithRecentMessageLimit(limit int) Option {
	return func(a *Assembler) {
		if limit > 0 {
			a.recentLimit = limit
		}
	}
}

// WithSummaryLimit overrides how many period summaries are included.
// Non-positive values keep the default.
func WithSummaryLimit(limit int) Option {
	return func(a *Assembler) {
		if limit > 0 {
			a.summaryLimit = limit
		}
	}
}

// New creates a context assembler.
func New(
	customers database.CustomerRepositoryInterface,
	conversations database.ConversationRepositoryInterface,
	summaries database.SummaryRepositoryInterface,
	logger *zap.Logger,
	opts ...Option,
) *Assembler {
	a := &Assembler{
		customers:     customers,
		conversations: conversations,
		summaries:     summaries,
		logger:        logger,
		recentLimit:   DefaultRecentMessageLimit,
		summaryLimit:  DefaultSummaryLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build assembles the context for one AI turn. Messages come from
// CURRENT conversations only; history older than the retention window is
// reachable solely through summaries and the profile. A missing customer
// surfaces as a NotFoundError, never as an empty context.
func (a *Assembler) Build(ctx context.Context, tenant *models.Tenant, customerID uuid.UUID, recentLimit int) (*models.Context, error) {
	if recentLimit <= 0 {
		recentLimit = a.recentLimit
	}

	customer, err := a.customers.GetByID(ctx, tenant.ID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	messages, err := a.conversations.ListRecentMessages(ctx, customerID, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	// Most-recent-first from the store; present oldest-to-newest.
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	summaries, err := a.summaries.ListRecent(ctx, customerID, a.summaryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}

	result := &models.Context{
		Customer:  customer,
		Messages:  messages,
		Summaries: summaries,
	}
	result.QualityScore = scoreContext(result)
	result.QualityTier = models.TierForScore(result.QualityScore)
	result.Prompt = renderPrompt(tenant, result)

	if a.logger != nil {
		a.logger.Debug("context_assembled",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("customer_id", customerID.String()),
			zap.Int("message_count", len(messages)),
			zap.Int("summary_count", len(summaries)),
			zap.Int("quality_score", result.QualityScore),
			zap.String("quality_tier", string(result.QualityTier)),
		)
	}

	return result, nil
}

// scoreContext computes the 0-100 quality score from four equally
// weighted buckets: profile summary present, structured profile
// populated, enough recent messages, at least one summary.
func scoreContext(c *models.Context) int {
	score := 0
	if c.Customer.HasProfileSummary() {
		score += bucketWeight
	}
	if c.Customer.HasStructuredProfile() {
		score += bucketWeight
	}
	if len(c.Messages) >= MinMessagesForFullScore {
		score += bucketWeight
	}
	if len(c.Summaries) >= 1 {
		score += bucketWeight
	}
	return score
}

// renderPrompt serializes the assembled context into the system prompt
// handed to the response generator.
func renderPrompt(tenant *models.Tenant, c *models.Context) string {
	var b strings.Builder

	b.WriteString("You are a customer support assistant")
	if tenant.Name != "" {
		fmt.Fprintf(&b, " for %s", tenant.Name)
	}
	b.WriteString(".\n")
	if tenant.CustomPrompt != "" {
		b.WriteString("\n")
		b.WriteString(tenant.CustomPrompt)
		b.WriteString("\n")
	}

	if c.Customer.HasProfileSummary() {
		b.WriteString("\nCustomer profile:\n")
		b.WriteString(c.Customer.ProfileSummary)
		b.WriteString("\n")
	}
	if len(c.Customer.Preferences) > 0 {
		b.WriteString("\nCustomer preferences:\n")
		keys := make([]string, 0, len(c.Customer.Preferences))
		for k := range c.Customer.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, c.Customer.Preferences[k])
		}
	}
	if len(c.Customer.Insights) > 0 {
		b.WriteString("\nNotes for the agent:\n")
		for _, insight := range c.Customer.Insights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
	}

	if len(c.Summaries) > 0 {
		b.WriteString("\nHistory summaries (newest first):\n")
		for _, summary := range c.Summaries {
			fmt.Fprintf(&b, "[%s] %s\n", summary.PeriodKey, summary.Text)
		}
	}

	if len(c.Messages) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, msg := range c.Messages {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	b.WriteString("\nAnswer the customer's latest message helpfully and concisely.")
	return b.String()
}
