package models

// QualityTier is the qualitative label for a context quality score.
type QualityTier string

const (
	TierExcellent QualityTier = "excellent"
	TierGood      QualityTier = "good"
	TierFair      QualityTier = "fair"
	TierLimited   QualityTier = "limited"
)

// TierForScore maps a 0-100 quality score to its tier.
func TierForScore(score int) QualityTier {
	switch {
	case score >= 75:
		return TierExcellent
	case score >= 50:
		return TierGood
	case score >= 25:
		return TierFair
	default:
		return TierLimited
	}
}

// Context is the bounded bundle handed to the AI responder for one turn:
// the customer's durable profile, the recent current-period messages in
// chronological order, and the most recent period summaries.
type Context struct {
	Customer     *Customer   `json:"customer"`
	Messages     []*Message  `json:"messages"`
	Summaries    []*Summary  `json:"summaries"`
	QualityScore int         `json:"quality_score"`
	QualityTier  QualityTier `json:"quality_tier"`
	Prompt       string      `json:"-"`
}
