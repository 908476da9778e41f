package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/supportmind/memory-core/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("message_role", validateMessageRole); err != nil {
		panic(fmt.Sprintf("failed to register message_role validator: %v", err))
	}
	if err := Validate.RegisterValidation("feedback_category", validateFeedbackCategory); err != nil {
		panic(fmt.Sprintf("failed to register feedback_category validator: %v", err))
	}
}

// validateMessageRole validates that a string is a valid MessageRole enum value
func validateMessageRole(fl validator.FieldLevel) bool {
	return models.ValidRole(models.MessageRole(fl.Field().String()))
}

// validateFeedbackCategory validates that a string is a valid FeedbackCategory enum value
func validateFeedbackCategory(fl validator.FieldLevel) bool {
	switch models.FeedbackCategory(fl.Field().String()) {
	case models.FeedbackGood, models.FeedbackOK, models.FeedbackPoor, models.FeedbackWrong:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateMessageRole validates a MessageRole string value
func ValidateMessageRole(value string) error {
	if models.ValidRole(models.MessageRole(value)) {
		return nil
	}
	return fmt.Errorf("invalid role: %s (must be 'customer', 'assistant', or 'system')", value)
}

// ValidateFeedbackCategory validates a FeedbackCategory string value
func ValidateFeedbackCategory(value string) error {
	switch models.FeedbackCategory(value) {
	case models.FeedbackGood, models.FeedbackOK, models.FeedbackPoor, models.FeedbackWrong:
		return nil
	default:
		return fmt.Errorf("invalid category: %s (must be 'good', 'ok', 'poor', or 'wrong')", value)
	}
}

// ValidateRating validates a feedback rating value
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("invalid rating: %d (must be between 1 and 5)", rating)
	}
	return nil
}
