package models

// Category is the topical bucket a message falls into.
type Category string

const (
	CategorySales    Category = "sales"
	CategorySupport  Category = "support"
	CategoryDelivery Category = "delivery"
	CategoryBilling  Category = "billing"
	CategoryFeedback Category = "feedback"
	CategoryGeneral  Category = "general"
)

// Sentiment is the coarse emotional tone of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Classification is the result of categorizing one inbound message. It is
// persisted on the conversation and echoed back to the ingestion caller.
type Classification struct {
	Category   Category  `json:"category"`
	Priority   Priority  `json:"priority"`
	Sentiment  Sentiment `json:"sentiment"`
	Tags       []string  `json:"tags,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Confidence float64   `json:"confidence"`
}
