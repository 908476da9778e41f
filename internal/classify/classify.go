// Package classify implements the deterministic categorization layer that
// runs synchronously on every inbound message. Classification is a pure
// function of the text: a fixed, ordered keyword table decides the
// category (first matching group wins), urgency keywords escalate
// priority, and tags accumulate every matching group's label. Anything
// needing generative text is deferred to the archival pipeline.
package classify

import (
	"context"
	"strings"
	"time"

	"github.com/supportmind/memory-core/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultSubjectLength bounds the extracted subject line.
	DefaultSubjectLength = 80
	// DefaultFallbackThreshold is the confidence below which the LLM
	// fallback is consulted, when one is configured.
	DefaultFallbackThreshold = 0.5
	// DefaultFallbackTimeout bounds the LLM fallback call so the append
	// path is never left pending on a slow provider.
	DefaultFallbackTimeout = 10 * time.Second
)

// keywordGroup maps a set of trigger keywords to a tag label and,
// for the category groups, a category.
type keywordGroup struct {
	label    string
	category models.Category
	keywords []string
}

// categoryGroups is scanned left-to-right; the first group with a match
// decides the category. Order is part of the contract.
var categoryGroups = []keywordGroup{
	{label: "sales", category: models.CategorySales, keywords: []string{
		"buy", "purchase", "price", "pricing", "quote", "discount", "upgrade", "subscribe",
	}},
	{label: "support", category: models.CategorySupport, keywords: []string{
		"help", "issue", "problem", "broken", "error", "not working", "bug", "crash", "stuck", "can't",
	}},
	{label: "delivery", category: models.CategoryDelivery, keywords: []string{
		"delivery", "shipping", "shipment", "tracking", "package", "order", "arrive", "courier",
	}},
	{label: "billing", category: models.CategoryBilling, keywords: []string{
		"invoice", "billing", "charge", "charged", "payment", "refund", "receipt", "subscription fee",
	}},
	{label: "feedback", category: models.CategoryFeedback, keywords: []string{
		"feedback", "suggestion", "suggest", "recommend", "review", "complaint", "complain",
	}},
}

var urgentGroup = keywordGroup{label: "urgent", keywords: []string{
	"urgent", "urgently", "asap", "immediately", "emergency", "right now", "critical",
}}

var informationalGroup = keywordGroup{label: "informational", keywords: []string{
	"just wondering", "just curious", "no rush", "whenever", "fyi", "for your information",
}}

var positiveWords = []string{
	"thanks", "thank you", "great", "love", "awesome", "perfect", "happy", "excellent",
}

var negativeWords = []string{
	"angry", "terrible", "awful", "disappointed", "worst", "frustrated", "unacceptable", "broken", "hate",
}

// Fallback is the optional LLM-assisted classifier consulted for
// ambiguous text. It enriches the deterministic result; it never replaces
// it on the hot path.
type Fallback interface {
	Classify(ctx context.Context, text string) (*models.Classification, error)
}

// Engine classifies message text. The zero-dependency deterministic pass
// always runs; the fallback only runs when confidence is low and a
// fallback is configured.
type Engine struct {
	fallback          Fallback
	fallbackThreshold float64
	fallbackTimeout   time.Duration
	logger            *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFallback sets the LLM-assisted fallback classifier.
func WithFallback(f Fallback) Option {
	return func(e *Engine) { e.fallback = f }
}

// WithFallbackThreshold overrides the confidence threshold below which
// the fallback is consulted.
func WithFallbackThreshold(threshold float64) Option {
	return func(e *Engine) { e.fallbackThreshold = threshold }
}

// WithLogger sets the logger used for fallback failures.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a classification engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		fallbackThreshold: DefaultFallbackThreshold,
		fallbackTimeout:   DefaultFallbackTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify derives category, priority, sentiment, tags and a subject from
// the message text. The deterministic pass is pure: identical input
// always yields an identical result. When the result is low-confidence
// and a fallback is configured, the fallback may refine category and
// sentiment; a fallback failure degrades to the deterministic result.
func (e *Engine) Classify(ctx context.Context, text, platform string) *models.Classification {
	result := Deterministic(text, platform)

	if e.fallback != nil && result.Confidence < e.fallbackThreshold {
		fbCtx, cancel := context.WithTimeout(ctx, e.fallbackTimeout)
		defer cancel()
		refined, err := e.fallback.Classify(fbCtx, text)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("classification_fallback_failed", zap.Error(err))
			}
			return result
		}
		mergeFallback(result, refined)
	}

	return result
}

// Deterministic runs the rule-based classification pass. It is a pure
// function over the text and platform.
func Deterministic(text, platform string) *models.Classification {
	lower := strings.ToLower(text)

	result := &models.Classification{
		Category:  models.CategoryGeneral,
		Priority:  models.PriorityNormal,
		Sentiment: sentimentOf(lower),
		Subject:   Subject(text, DefaultSubjectLength),
	}

	matched := 0
	for _, group := range categoryGroups {
		if hits := countMatches(lower, group.keywords); hits > 0 {
			if matched == 0 {
				result.Category = group.category
			}
			matched++
			result.Tags = append(result.Tags, group.label)
		}
	}

	urgent := countMatches(lower, urgentGroup.keywords) > 0
	informational := countMatches(lower, informationalGroup.keywords) > 0
	switch {
	case urgent:
		result.Priority = models.PriorityHigh
		result.Tags = append(result.Tags, urgentGroup.label)
	case informational:
		result.Priority = models.PriorityLow
	}

	if platform != "" {
		result.Tags = append(result.Tags, "platform:"+strings.ToLower(platform))
	}

	result.Confidence = confidenceFor(matched)
	return result
}

// confidenceFor maps the number of matched category groups to a fixed
// confidence value. One clear match is trusted more than an ambiguous
// multi-category hit; no match at all is the least trusted.
func confidenceFor(matchedGroups int) float64 {
	switch matchedGroups {
	case 0:
		return 0.3
	case 1:
		return 0.9
	case 2:
		return 0.75
	default:
		return 0.6
	}
}

func sentimentOf(lower string) models.Sentiment {
	positive := countMatches(lower, positiveWords)
	negative := countMatches(lower, negativeWords)
	switch {
	case negative > positive:
		return models.SentimentNegative
	case positive > negative:
		return models.SentimentPositive
	default:
		return models.SentimentNeutral
	}
}

func countMatches(lower string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}

// mergeFallback folds an LLM-refined classification into the
// deterministic result. Only category and sentiment may be refined, and
// only when the fallback reports higher confidence; tags from the
// fallback are merged in.
func mergeFallback(base, refined *models.Classification) {
	if refined == nil {
		return
	}
	if refined.Confidence > base.Confidence {
		if refined.Category != "" {
			base.Category = refined.Category
		}
		if refined.Sentiment != "" {
			base.Sentiment = refined.Sentiment
		}
		base.Confidence = refined.Confidence
	}
	for _, tag := range refined.Tags {
		if !containsString(base.Tags, tag) {
			base.Tags = append(base.Tags, tag)
		}
	}
}

func containsString(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

// Subject extracts a bounded subject line from the text: a plain
// character-count truncation with an ellipsis. Never an LLM call.
func Subject(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if maxRunes <= 0 {
		maxRunes = DefaultSubjectLength
	}
	if line := strings.IndexAny(text, "\r\n"); line >= 0 {
		text = text[:line]
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
