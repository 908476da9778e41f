package validation

import (
	"testing"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trims whitespace",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "keeps newlines and tabs",
			input: "line one\nline two\tend",
			want:  "line one\nline two\tend",
		},
		{
			name:  "strips control characters",
			input: "abc\x00\x08def",
			want:  "abcdef",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateMessageRole(t *testing.T) {
	t.Parallel()

	for _, role := range []string{"customer", "assistant", "system"} {
		if err := ValidateMessageRole(role); err != nil {
			t.Errorf("ValidateMessageRole(%q) = %v, want nil", role, err)
		}
	}

	for _, role := range []string{"", "admin", "Customer"} {
		if err := ValidateMessageRole(role); err == nil {
			t.Errorf("ValidateMessageRole(%q) succeeded, expected error", role)
		}
	}
}

func TestValidateFeedbackCategory(t *testing.T) {
	t.Parallel()

	for _, category := range []string{"good", "ok", "poor", "wrong"} {
		if err := ValidateFeedbackCategory(category); err != nil {
			t.Errorf("ValidateFeedbackCategory(%q) = %v, want nil", category, err)
		}
	}

	if err := ValidateFeedbackCategory("excellent"); err == nil {
		t.Error("ValidateFeedbackCategory(\"excellent\") succeeded, expected error")
	}
}

func TestValidateRating(t *testing.T) {
	t.Parallel()

	for rating := 1; rating <= 5; rating++ {
		if err := ValidateRating(rating); err != nil {
			t.Errorf("ValidateRating(%d) = %v, want nil", rating, err)
		}
	}

	for _, rating := range []int{0, -1, 6, 100} {
		if err := ValidateRating(rating); err == nil {
			t.Errorf("ValidateRating(%d) succeeded, expected error", rating)
		}
	}
}

func TestStructValidation(t *testing.T) {
	t.Parallel()

	type payload struct {
		Role     string `validate:"omitempty,message_role"`
		Category string `validate:"omitempty,feedback_category"`
	}

	if err := Validate.Struct(payload{Role: "customer", Category: "good"}); err != nil {
		t.Errorf("Valid payload rejected: %v", err)
	}
	if err := Validate.Struct(payload{}); err != nil {
		t.Errorf("Empty optional fields rejected: %v", err)
	}
	if err := Validate.Struct(payload{Role: "robot"}); err == nil {
		t.Error("Invalid role accepted")
	}
	if err := Validate.Struct(payload{Category: "stellar"}); err == nil {
		t.Error("Invalid category accepted")
	}
}
