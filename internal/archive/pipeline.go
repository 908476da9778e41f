// Package archive moves conversations from CURRENT to ARCHIVED once
// their period falls outside the tenant's retention window, compressing
// each customer-period group into one durable summary.
package archive

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/services/ai"
)

// DefaultProfileSummaryCount is how many recent summaries feed a profile
// refresh.
const DefaultProfileSummaryCount = 5

// Cutoff returns the period boundary for archival: CURRENT conversations
// with a period strictly before the cutoff are archived. With the default
// retention of 2, the current period and the one before it stay current.
func Cutoff(current models.PeriodKey, retentionPeriods int) models.PeriodKey {
	if retentionPeriods < 1 {
		retentionPeriods = 1
	}
	return current.AddPeriods(-(retentionPeriods - 1))
}

// ProfileRefreshScheduler schedules an asynchronous profile refresh for a
// customer after archival. At-least-once delivery is expected.
type ProfileRefreshScheduler interface {
	ScheduleProfileRefresh(ctx context.Context, tenantID, customerID uuid.UUID) error
}

// Locker provides single-flight coordination per tenant. Release must be
// called when the run finishes; acquired is false when another run holds
// the lock.
type Locker interface {
	Acquire(ctx context.Context, tenantID uuid.UUID) (release func(), acquired bool, err error)
}

// Report aggregates the outcome of one archival run. Per-customer errors
// are isolated; the run continues past them and reports counts.
type Report struct {
	CustomersProcessed int      `json:"customers_processed"`
	GroupsArchived     int      `json:"groups_archived"`
	ConversationsMoved int      `json:"conversations_moved"`
	GroupsSkipped      int      `json:"groups_skipped"`
	CustomersErrored   int      `json:"customers_errored"`
	Errors             []string `json:"errors,omitempty"`
}

// Pipeline runs archival batches.
type Pipeline struct {
	customers     database.CustomerRepositoryInterface
	conversations database.ConversationRepositoryInterface
	summaries     database.SummaryRepositoryInterface
	provider      ai.Provider
	scheduler     ProfileRefreshScheduler
	locker        Locker
	logger        *zap.Logger
}

// New creates an archival pipeline. The scheduler and locker are
// optional: without a locker the caller is responsible for single-flight,
// and without a scheduler profile refreshes are skipped.
func New(
	customers database.CustomerRepositoryInterface,
	conversations database.ConversationRepositoryInterface,
	summaries database.SummaryRepositoryInterface,
	provider ai.Provider,
	scheduler ProfileRefreshScheduler,
	locker Locker,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		customers:     customers,
		conversations: conversations,
		summaries:     summaries,
		provider:      provider,
		scheduler:     scheduler,
		locker:        locker,
		logger:        logger,
	}
}

// Run archives every customer of the tenant whose CURRENT conversations
// fall before the retention cutoff. When customerID is non-nil the run is
// scoped to that single customer. The run is idempotent: groups that
// already have a summary are skipped, and each group transitions
// atomically, so re-running or interrupting a batch never duplicates
// summaries or leaves a group half-archived.
func (p *Pipeline) Run(ctx context.Context, tenant *models.Tenant, customerID *uuid.UUID) (*Report, error) {
	if p.locker != nil {
		release, acquired, err := p.locker.Acquire(ctx, tenant.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire archival lock: %w", err)
		}
		if !acquired {
			return nil, errs.Conflict("archival already running for tenant")
		}
		defer release()
	}

	cutoff := Cutoff(models.CurrentPeriod(), tenant.EffectiveRetention())

	var customerIDs []uuid.UUID
	if customerID != nil {
		customerIDs = []uuid.UUID{*customerID}
	} else {
		var err error
		customerIDs, err = p.customers.ListWithArchivableConversations(ctx, tenant.ID, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to list archivable customers: %w", err)
		}
	}

	report := &Report{}
	for _, id := range customerIDs {
		// Cancellation between customer groups only loses unprocessed
		// work; completed groups are already committed.
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.CustomersProcessed++
		if err := p.archiveCustomer(ctx, tenant, id, cutoff, report); err != nil {
			report.CustomersErrored++
			report.Errors = append(report.Errors, fmt.Sprintf("customer %s: %v", id, err))
			if p.logger != nil {
				p.logger.Error("archival_customer_failed",
					zap.String("tenant_id", tenant.ID.String()),
					zap.String("customer_id", id.String()),
					zap.Error(err),
				)
			}
		}
	}

	if p.logger != nil {
		p.logger.Info("archival_run_completed",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("cutoff_period", string(cutoff)),
			zap.Int("customers_processed", report.CustomersProcessed),
			zap.Int("groups_archived", report.GroupsArchived),
			zap.Int("groups_skipped", report.GroupsSkipped),
			zap.Int("customers_errored", report.CustomersErrored),
		)
	}

	return report, nil
}

func (p *Pipeline) archiveCustomer(ctx context.Context, tenant *models.Tenant, customerID uuid.UUID, cutoff models.PeriodKey, report *Report) error {
	customer, err := p.customers.GetByID(ctx, tenant.ID, customerID)
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}

	conversations, err := p.conversations.ListCurrentBefore(ctx, customerID, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list archivable conversations: %w", err)
	}
	if len(conversations) == 0 {
		return nil
	}

	groups := groupByPeriod(conversations)
	archivedAny := false

	for _, group := range groups {
		exists, err := p.summaries.Exists(ctx, customerID, group.period)
		if err != nil {
			return fmt.Errorf("failed to check summary for period %s: %w", group.period, err)
		}
		if exists {
			report.GroupsSkipped++
			continue
		}

		if err := p.archiveGroup(ctx, tenant, customer, group); err != nil {
			// A concurrent run already created this period's summary.
			if errs.IsConflict(err) {
				report.GroupsSkipped++
				continue
			}
			return fmt.Errorf("failed to archive period %s: %w", group.period, err)
		}

		report.GroupsArchived++
		report.ConversationsMoved += len(group.conversations)
		archivedAny = true
	}

	if archivedAny && p.scheduler != nil {
		// Profile refresh is eventually consistent; a scheduling failure
		// never rolls back the archival.
		if err := p.scheduler.ScheduleProfileRefresh(ctx, tenant.ID, customerID); err != nil && p.logger != nil {
			p.logger.Warn("profile_refresh_schedule_failed",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("customer_id", customerID.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

// archiveGroup summarizes one customer-period group and marks every
// conversation in it ARCHIVED in a single atomic batch.
func (p *Pipeline) archiveGroup(ctx context.Context, tenant *models.Tenant, customer *models.Customer, group periodGroup) error {
	var messages []models.Message
	conversationIDs := make([]uuid.UUID, 0, len(group.conversations))
	for _, conv := range group.conversations {
		conversationIDs = append(conversationIDs, conv.ID)
		msgs, err := p.conversations.GetMessages(ctx, conv.ID, 0)
		if err != nil {
			return fmt.Errorf("failed to load messages for conversation %s: %w", conv.ID, err)
		}
		for _, msg := range msgs {
			messages = append(messages, *msg)
		}
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	text, err := p.provider.Summarize(ctx, &ai.SummaryRequest{
		CustomerName: customer.Name,
		PeriodKey:    group.period,
		Messages:     messages,
		CustomPrompt: tenant.CustomPrompt,
	})
	if err != nil {
		return errs.External("summarization", err)
	}

	summary := &models.Summary{
		ID:                uuid.New(),
		TenantID:          tenant.ID,
		CustomerID:        customer.ID,
		PeriodKey:         group.period,
		Text:              text,
		MessageCount:      len(messages),
		ConversationCount: len(group.conversations),
	}

	return p.summaries.CreateWithArchival(ctx, summary, conversationIDs)
}

// RefreshProfile recomputes a customer's durable profile from their most
// recent summaries.
func (p *Pipeline) RefreshProfile(ctx context.Context, tenant *models.Tenant, customerID uuid.UUID) error {
	customer, err := p.customers.GetByID(ctx, tenant.ID, customerID)
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}

	summaries, err := p.summaries.ListRecent(ctx, customerID, DefaultProfileSummaryCount)
	if err != nil {
		return fmt.Errorf("failed to list summaries: %w", err)
	}
	if len(summaries) == 0 {
		return nil
	}

	recent := make([]models.Summary, 0, len(summaries))
	for _, s := range summaries {
		recent = append(recent, *s)
	}

	result, err := p.provider.GenerateProfile(ctx, &ai.ProfileRequest{
		Customer:  customer,
		Summaries: recent,
	})
	if err != nil {
		return errs.External("profile generation", err)
	}

	if err := p.customers.UpdateProfile(ctx, customerID, result.Summary, result.Preferences, result.Tags, result.Insights); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if p.logger != nil {
		p.logger.Info("profile_refreshed",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("customer_id", customerID.String()),
			zap.Int("summary_count", len(recent)),
		)
	}
	return nil
}

type periodGroup struct {
	period        models.PeriodKey
	conversations []*models.Conversation
}

// groupByPeriod buckets conversations by period key, oldest period first.
func groupByPeriod(conversations []*models.Conversation) []periodGroup {
	byPeriod := make(map[models.PeriodKey][]*models.Conversation)
	for _, conv := range conversations {
		byPeriod[conv.PeriodKey] = append(byPeriod[conv.PeriodKey], conv)
	}

	periods := make([]models.PeriodKey, 0, len(byPeriod))
	for period := range byPeriod {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })

	groups := make([]periodGroup, 0, len(periods))
	for _, period := range periods {
		groups = append(groups, periodGroup{period: period, conversations: byPeriod[period]})
	}
	return groups
}
