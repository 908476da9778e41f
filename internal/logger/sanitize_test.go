package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{
			name:      "plain string unchanged",
			input:     "hello world",
			maxLength: 100,
			want:      "hello world",
		},
		{
			name:      "empty string",
			input:     "",
			maxLength: 100,
			want:      "",
		},
		{
			name:      "newlines stripped",
			input:     "line1\nfake log entry",
			maxLength: 100,
			want:      "line1fake log entry",
		},
		{
			name:      "control characters stripped",
			input:     "abc\x00\x1bdef",
			maxLength: 100,
			want:      "abcdef",
		},
		{
			name:      "truncated with ellipsis",
			input:     strings.Repeat("a", 50),
			maxLength: 10,
			want:      strings.Repeat("a", 10) + "...",
		},
		{
			name:      "invalid utf8 removed",
			input:     "ok\xffmore",
			maxLength: 100,
			want:      "okmore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SanitizeString(tt.input, tt.maxLength)
			if got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	got := SanitizePath("/api/v1/messages\r\nInjected: yes")
	if strings.ContainsAny(got, "\r\n") {
		t.Errorf("SanitizePath left line breaks in %q", got)
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q, want empty", got)
	}

	if got := SanitizeError(errors.New("connection\nrefused")); got != "connectionrefused" {
		t.Errorf("SanitizeError = %q", got)
	}
}
