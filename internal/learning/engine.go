// Package learning logs every AI turn, keeps rolling metrics, and turns
// negative human feedback into failure analyses and tuning suggestions.
package learning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
)

const (
	// DefaultPatternWindow is the default lookback for pattern analysis.
	DefaultPatternWindow = 30 * 24 * time.Hour
	// DefaultTopTopics bounds the topic ranking in reports.
	DefaultTopTopics = 5

	// LowConfidenceThreshold marks an interaction as low-confidence.
	LowConfidenceThreshold = 0.6
	// lowConfidenceShare is the share of low-confidence interactions above
	// which better context/prompting is suggested.
	lowConfidenceShare = 0.3
	// takeoverShare is the share of human takeovers above which expanding
	// coverage is suggested.
	takeoverShare = 0.2
)

// Engine is the learning and feedback engine.
type Engine struct {
	records    database.LearningRepositoryInterface
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewEngine creates a learning engine. The aggregator is injected so its
// lifecycle is owned by the process, not by this package.
func NewEngine(records database.LearningRepositoryInterface, aggregator *Aggregator, logger *zap.Logger) *Engine {
	return &Engine{
		records:    records,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Stats returns a point-in-time snapshot of the in-memory metrics.
func (e *Engine) Stats(topN int) Stats {
	return e.aggregator.Snapshot(topN)
}

// RecordInteraction appends a learning record and updates the rolling
// metrics. It is best-effort: persistence failures are logged and
// swallowed so learning never breaks the response-delivery path.
func (e *Engine) RecordInteraction(ctx context.Context, record *models.LearningRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	// The rolling metrics update even when persistence fails, so a store
	// outage cannot freeze the stats endpoint.
	if e.aggregator != nil {
		e.aggregator.Observe(record)
	}

	if err := e.records.CreateRecord(ctx, record); err != nil {
		if e.logger != nil {
			e.logger.Error("learning_record_failed",
				zap.String("tenant_id", record.TenantID.String()),
				zap.String("customer_id", record.CustomerID.String()),
				zap.Error(err),
			)
		}
	}
}

// RecordFeedback attaches human feedback to an existing record owned by
// the tenant. A record belonging to another tenant is reported as not
// found. Negative feedback (rating <= 2, or category poor/wrong)
// synchronously triggers a failure analysis.
func (e *Engine) RecordFeedback(ctx context.Context, tenantID, recordID uuid.UUID, feedback *models.Feedback) error {
	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to load learning record: %w", err)
	}
	if record.TenantID != tenantID {
		return errs.NotFound("learning record", recordID.String())
	}

	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}

	if err := e.records.AttachFeedback(ctx, tenantID, recordID, feedback); err != nil {
		return fmt.Errorf("failed to attach feedback: %w", err)
	}

	if feedback.Negative() {
		if _, err := e.AnalyzeFailure(ctx, recordID, feedback); err != nil {
			return fmt.Errorf("failed to analyze failure: %w", err)
		}
	}

	return nil
}

// AnalyzeFailure reads back a learning record and derives candidate
// causes and suggested actions from fixed heuristics, persisting exactly
// one FailureAnalysis for the triggering feedback.
func (e *Engine) AnalyzeFailure(ctx context.Context, recordID uuid.UUID, feedback *models.Feedback) (*models.FailureAnalysis, error) {
	record, err := e.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load learning record: %w", err)
	}

	var causes, actions []string
	if record.Confidence < 0.5 {
		causes = append(causes, "low classification confidence")
		actions = append(actions, "expand the keyword rules or enable the LLM classification fallback for this traffic")
	}
	if !record.HadCustomPrompt {
		causes = append(causes, "tenant has no custom prompt configured")
		actions = append(actions, "configure a tenant custom prompt describing tone and policies")
	}
	if record.ContextMessages == 0 {
		causes = append(causes, "no conversation history was available")
		actions = append(actions, "verify message ingestion for this customer; responses improve with recent context")
	}
	if feedback.Category == models.FeedbackWrong {
		causes = append(causes, "response marked factually wrong by reviewer")
		actions = append(actions, "route similar requests to a human until the knowledge gap is closed")
	}
	if len(causes) == 0 {
		causes = append(causes, "no heuristic cause identified")
		actions = append(actions, "review the interaction manually")
	}

	analysis := &models.FailureAnalysis{
		ID:               uuid.New(),
		TenantID:         record.TenantID,
		LearningRecordID: record.ID,
		Causes:           causes,
		Actions:          actions,
	}
	if err := e.records.CreateFailureAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to persist failure analysis: %w", err)
	}

	if e.logger != nil {
		e.logger.Info("failure_analysis_created",
			zap.String("tenant_id", record.TenantID.String()),
			zap.String("learning_record_id", record.ID.String()),
			zap.Strings("causes", causes),
		)
	}

	return analysis, nil
}

// CategoryPerformance summarizes one category's interactions in a window.
type CategoryPerformance struct {
	Interactions     int     `json:"interactions"`
	ResponseRate     float64 `json:"response_rate"`
	AvgConfidence    float64 `json:"avg_confidence"`
	SatisfactionRate float64 `json:"satisfaction_rate"`
}

// PatternReport aggregates learning records over a time window.
type PatternReport struct {
	Window        string                         `json:"window"`
	Interactions  int                            `json:"interactions"`
	ResponseRate  float64                        `json:"response_rate"`
	AvgConfidence float64                        `json:"avg_confidence"`
	TopTopics     []TopicCount                   `json:"top_topics"`
	Sentiment     map[string]int                 `json:"sentiment_distribution"`
	PerCategory   map[string]CategoryPerformance `json:"per_category"`
	Suggestions   []string                       `json:"suggestions"`
}

// AnalyzePatterns aggregates a tenant's learning records over the window
// into rates, distributions and ranked improvement suggestions.
func (e *Engine) AnalyzePatterns(ctx context.Context, tenantID uuid.UUID, window time.Duration) (*PatternReport, error) {
	if window <= 0 {
		window = DefaultPatternWindow
	}
	since := time.Now().UTC().Add(-window)

	records, err := e.records.ListRecordsSince(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list learning records: %w", err)
	}

	report := &PatternReport{
		Window:      window.String(),
		Sentiment:   make(map[string]int),
		PerCategory: make(map[string]CategoryPerformance),
	}
	if len(records) == 0 {
		return report, nil
	}

	type categoryAccum struct {
		interactions  int
		responded     int
		confidenceSum float64
		rated         int
		satisfied     int
	}

	topicCounts := make(map[string]int64)
	byCategory := make(map[string]*categoryAccum)
	responded := 0
	lowConfidence := 0
	var confidenceSum float64

	for _, record := range records {
		report.Interactions++
		confidenceSum += record.Confidence
		if record.Responded {
			responded++
		}
		if record.Confidence < LowConfidenceThreshold {
			lowConfidence++
		}
		if record.Sentiment != "" {
			report.Sentiment[string(record.Sentiment)]++
		}

		category := string(record.Category)
		if category == "" {
			category = string(models.CategoryGeneral)
		}
		topicCounts[category]++

		accum := byCategory[category]
		if accum == nil {
			accum = &categoryAccum{}
			byCategory[category] = accum
		}
		accum.interactions++
		accum.confidenceSum += record.Confidence
		if record.Responded {
			accum.responded++
		}
		if record.Feedback != nil {
			accum.rated++
			if !record.Feedback.Negative() {
				accum.satisfied++
			}
		}
	}

	total := float64(report.Interactions)
	report.ResponseRate = float64(responded) / total
	report.AvgConfidence = confidenceSum / total

	topics := make([]TopicCount, 0, len(topicCounts))
	for topic, count := range topicCounts {
		topics = append(topics, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Topic < topics[j].Topic
	})
	if len(topics) > DefaultTopTopics {
		topics = topics[:DefaultTopTopics]
	}
	report.TopTopics = topics

	for category, accum := range byCategory {
		perf := CategoryPerformance{
			Interactions:  accum.interactions,
			ResponseRate:  float64(accum.responded) / float64(accum.interactions),
			AvgConfidence: accum.confidenceSum / float64(accum.interactions),
		}
		if accum.rated > 0 {
			perf.SatisfactionRate = float64(accum.satisfied) / float64(accum.rated)
		}
		report.PerCategory[category] = perf
	}

	if float64(lowConfidence)/total > lowConfidenceShare {
		report.Suggestions = append(report.Suggestions,
			"over 30% of interactions are low-confidence: improve context assembly or tenant prompting")
	}
	if float64(report.Interactions-responded)/total > takeoverShare {
		report.Suggestions = append(report.Suggestions,
			"over 20% of interactions were escalated to a human: expand automated coverage for the top topics")
	}

	return report, nil
}

// OptimizationReport combines pattern analysis with static tuning
// heuristics. It recommends changes; it never applies them.
type OptimizationReport struct {
	Patterns        *PatternReport `json:"patterns"`
	Recommendations []string       `json:"recommendations"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// Optimize produces an actionable optimization report for a tenant.
func (e *Engine) Optimize(ctx context.Context, tenant *models.Tenant) (*OptimizationReport, error) {
	patterns, err := e.AnalyzePatterns(ctx, tenant.ID, DefaultPatternWindow)
	if err != nil {
		return nil, err
	}

	report := &OptimizationReport{
		Patterns:    patterns,
		GeneratedAt: time.Now().UTC(),
	}
	report.Recommendations = append(report.Recommendations, patterns.Suggestions...)

	if patterns.Interactions > 0 && patterns.AvgConfidence < LowConfidenceThreshold {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("average confidence %.2f is below %.2f: consider lowering the auto-respond threshold (currently %.2f) or improving classification rules",
				patterns.AvgConfidence, LowConfidenceThreshold, tenant.EffectiveAutoRespondThreshold()))
	}
	if tenant.CustomPrompt == "" {
		report.Recommendations = append(report.Recommendations,
			"no tenant custom prompt is configured: responses use only the generic assistant instructions")
	}
	for category, perf := range patterns.PerCategory {
		if perf.Interactions >= 5 && perf.SatisfactionRate > 0 && perf.SatisfactionRate < 0.5 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("category %q has satisfaction below 50%%: review its recent failure analyses", category))
		}
	}
	sort.Strings(report.Recommendations)

	return report, nil
}
