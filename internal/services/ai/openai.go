package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/supportmind/memory-core/internal/models"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// DefaultMaxSummaryTokens bounds the length of generated period summaries
	DefaultMaxSummaryTokens = 500
	// DefaultMaxProfileTokens bounds the length of generated customer profiles
	DefaultMaxProfileTokens = 600
	// DefaultMaxMessagesInSummary caps how many messages are quoted in a
	// summarization prompt; older messages beyond the cap are dropped
	DefaultMaxMessagesInSummary = 200

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements the Provider interface using OpenAI's API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// complete sends a chat completion request and returns the first choice's
// content, with debug logging of the request and response when enabled.
func (p *OpenAIProvider) complete(ctx context.Context, operation string, req openai.ChatCompletionNewParams, promptLen int, promptPreview string) (string, error) {
	requestID := ExtractRequestID(ctx)
	tenantIDStr := ExtractTenantID(ctx)
	customerIDStr := ExtractCustomerID(ctx)

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("prompt_length", promptLen),
			zap.Int("message_count", len(req.Messages)),
			zap.String("prompt_preview", promptPreview),
			zap.String("tenant_id", tenantIDStr),
			zap.String("customer_id", customerIDStr),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", operation),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("tenant_id", tenantIDStr),
				zap.String("customer_id", customerIDStr),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("failed to %s: %w", operation, apiErr)
		}
		return "", fmt.Errorf("failed to %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", operation),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("tenant_id", tenantIDStr),
			zap.String("customer_id", customerIDStr),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

// Summarize condenses one customer-period group of conversations into a
// short plain-text summary.
func (p *OpenAIProvider) Summarize(ctx context.Context, req *SummaryRequest) (string, error) {
	prompt := buildSummaryPrompt(req)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a support analyst that writes concise summaries of customer conversation history. Capture the customer's requests, unresolved issues, and any commitments made. Plain text only, no headings."),
		openai.UserMessage(prompt),
	}

	completion := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  messages,
		MaxTokens: openai.Int(DefaultMaxSummaryTokens),
		// Temperature omitted - use model default to avoid "unsupported_value" errors
	}

	content, err := p.complete(ctx, "summarize", completion, len(prompt), SanitizePrompt(prompt, true))
	if err != nil {
		return "", err
	}
	return content, nil
}

// GenerateProfile distills a customer's period summaries into a durable
// profile with structured attributes.
func (p *OpenAIProvider) GenerateProfile(ctx context.Context, req *ProfileRequest) (*ProfileResult, error) {
	prompt := buildProfilePrompt(req)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a support analyst that maintains long-term customer profiles. Respond with valid JSON only."),
		openai.UserMessage(prompt),
	}

	completion := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  messages,
		MaxTokens: openai.Int(DefaultMaxProfileTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	content, err := p.complete(ctx, "generate_profile", completion, len(prompt), SanitizePrompt(prompt, true))
	if err != nil {
		return nil, err
	}

	return parseProfileResponse(content)
}

// GenerateResponse produces a draft reply from an assembled context prompt
// and the customer's latest message.
func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt string, userMessage string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt),
		openai.UserMessage(userMessage),
	}

	completion := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		// Temperature omitted - use model default to avoid "unsupported_value" errors
	}

	content, err := p.complete(ctx, "generate_response", completion, len(prompt), SanitizePrompt(prompt, true))
	if err != nil {
		return "", err
	}
	return content, nil
}

// Classify asks the model to categorize ambiguous message text. It is
// used as the low-confidence fallback behind the rule-based classifier.
func (p *OpenAIProvider) Classify(ctx context.Context, text string) (*models.Classification, error) {
	prompt := buildClassifyPrompt(text)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are a classifier for customer support messages. Respond with valid JSON only."),
		openai.UserMessage(prompt),
	}

	completion := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	content, err := p.complete(ctx, "classify", completion, len(prompt), SanitizePrompt(prompt, true))
	if err != nil {
		return nil, err
	}

	return parseClassificationResponse(content)
}

// extractJSONObject trims any non-JSON prose surrounding a JSON object in
// a model response.
func extractJSONObject(raw string) string {
	if len(raw) > 0 && raw[0] != '{' {
		start := bytes.Index([]byte(raw), []byte("{"))
		end := bytes.LastIndex([]byte(raw), []byte("}"))
		if start != -1 && end != -1 && end > start {
			return raw[start : end+1]
		}
	}
	return raw
}

func parseProfileResponse(content string) (*ProfileResult, error) {
	var result ProfileResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		raw := extractJSONObject(content)
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("failed to parse profile response: %w", err)
		}
	}
	if result.Summary == "" {
		return nil, errors.New("profile response missing summary")
	}
	return &result, nil
}

func parseClassificationResponse(content string) (*models.Classification, error) {
	var parsed struct {
		Category   string   `json:"category"`
		Priority   string   `json:"priority"`
		Sentiment  string   `json:"sentiment"`
		Tags       []string `json:"tags"`
		Confidence float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		raw := extractJSONObject(content)
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse classification response: %w", err)
		}
	}

	result := &models.Classification{
		Category:   models.Category(parsed.Category),
		Priority:   models.Priority(parsed.Priority),
		Sentiment:  models.Sentiment(parsed.Sentiment),
		Tags:       parsed.Tags,
		Confidence: parsed.Confidence,
	}

	switch result.Category {
	case models.CategorySales, models.CategorySupport, models.CategoryDelivery,
		models.CategoryBilling, models.CategoryFeedback, models.CategoryGeneral:
	default:
		result.Category = models.CategoryGeneral
	}
	if !models.ValidPriority(result.Priority) {
		result.Priority = models.PriorityNormal
	}
	switch result.Sentiment {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		result.Sentiment = models.SentimentNeutral
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		result.Confidence = 0.5
	}

	return result, nil
}

func buildSummaryPrompt(req *SummaryRequest) string {
	prompt := fmt.Sprintf("Summarize the following customer conversation history from period %s.", req.PeriodKey)
	if req.CustomerName != "" {
		prompt += fmt.Sprintf(" The customer is %q.", req.CustomerName)
	}
	if req.CustomPrompt != "" {
		prompt += "\n\nAdditional instructions: " + req.CustomPrompt
	}

	messages := req.Messages
	if len(messages) > DefaultMaxMessagesInSummary {
		messages = messages[len(messages)-DefaultMaxMessagesInSummary:]
	}

	prompt += "\n\nConversation history:\n"
	for _, msg := range messages {
		prompt += fmt.Sprintf("%s: %s\n", msg.Role, msg.Content)
	}

	prompt += "\nWrite a concise summary covering what the customer asked for, what was resolved, what remains open, and the customer's overall tone."
	return prompt
}

func buildProfilePrompt(req *ProfileRequest) string {
	prompt := "Maintain a long-term customer profile from the period summaries below."
	if req.Customer != nil && req.Customer.ProfileSummary != "" {
		prompt += "\n\nCurrent profile:\n" + req.Customer.ProfileSummary
	}

	prompt += "\n\nPeriod summaries (newest first):\n"
	for _, summary := range req.Summaries {
		prompt += fmt.Sprintf("[%s] %s\n", summary.PeriodKey, summary.Text)
	}

	prompt += `
Respond with a JSON object in this format:
{
  "summary": "one-paragraph profile of the customer",
  "preferences": {"key": "value"},
  "tags": ["tag1", "tag2"],
  "insights": ["notable insight"]
}

Guidelines:
- The summary describes who the customer is and their recurring needs, not individual conversations
- Preferences capture stable facts (preferred channel, language, product tier)
- Insights capture risks or opportunities worth surfacing to an agent

Return only valid JSON.`
	return prompt
}

func buildClassifyPrompt(text string) string {
	return fmt.Sprintf(`Classify the following customer support message.

Message: %q

Respond with a JSON object in this format:
{
  "category": "sales" | "support" | "delivery" | "billing" | "feedback" | "general",
  "priority": "low" | "normal" | "high" | "urgent",
  "sentiment": "positive" | "neutral" | "negative",
  "tags": ["tag1", "tag2"],
  "confidence": 0.0
}

Confidence is your certainty in the category, between 0 and 1. Return only valid JSON.`, text)
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string) (Provider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}

		model := config["model"]
		baseURL := config["base_url"]

		return NewOpenAIProviderWithLogger(apiKey, baseURL, model, nil, false), nil
	})
}
