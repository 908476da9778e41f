package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Context key types for logging (to avoid collisions with string keys)
type contextKey string

const (
	tenantIDContextKey   contextKey = "tenant_id"
	customerIDContextKey contextKey = "customer_id"
	requestIDContextKey  contextKey = "request_id"
)

// TenantIDContextKey returns the context key for tenant ID
func TenantIDContextKey() contextKey {
	return tenantIDContextKey
}

// CustomerIDContextKey returns the context key for customer ID
func CustomerIDContextKey() contextKey {
	return customerIDContextKey
}

// RequestIDContextKey returns the context key for request ID
func RequestIDContextKey() contextKey {
	return requestIDContextKey
}

const (
	// MaxPreviewLength is the maximum length for preview strings in logs
	MaxPreviewLength = 200
	// MaxDebugContentLength is the maximum length for full-content debug logs
	MaxDebugContentLength = 10000
	// RedactedValue is the value used to replace sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeAPIKey sanitizes an API key for logging
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	// Show first 4 and last 4 characters, redact the middle
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt creates a safe preview of a prompt for logging
// Even in fullLog mode, we sanitize to prevent log injection and limit size
func SanitizePrompt(prompt string, fullLog bool) string {
	if prompt == "" {
		return ""
	}

	maxLen := MaxPreviewLength
	if fullLog {
		maxLen = MaxDebugContentLength
	}

	return sanitizeStringForLogging(prompt, maxLen)
}

// SanitizeResponse creates a safe preview of a response for logging
// Even in fullLog mode, we sanitize to prevent log injection and limit size
func SanitizeResponse(response string, fullLog bool) string {
	if response == "" {
		return ""
	}

	maxLen := MaxPreviewLength
	if fullLog {
		maxLen = MaxDebugContentLength
	}

	return sanitizeStringForLogging(response, maxLen)
}

// sanitizeStringForLogging removes control characters, validates UTF-8, and truncates
func sanitizeStringForLogging(s string, maxLen int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	// Remove control characters (except space, tab, newline, carriage return)
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	s = builder.String()

	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}

	return s
}

// HashCustomerID creates a hash of a customer ID for logging (optional, for additional privacy)
func HashCustomerID(customerID string) string {
	if customerID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(customerID))
	return hex.EncodeToString(hash[:])[:16]
}

// TruncateString safely truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ExtractRequestID extracts a request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	if reqID := ctx.Value(requestIDContextKey); reqID != nil {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// ExtractTenantID extracts a tenant ID from context if available (handles UUID)
func ExtractTenantID(ctx context.Context) string {
	if tenantID := ctx.Value(tenantIDContextKey); tenantID != nil {
		if id, ok := tenantID.(interface{ String() string }); ok {
			return id.String()
		}
		if id, ok := tenantID.(string); ok {
			return id
		}
	}
	return ""
}

// ExtractCustomerID extracts a customer ID from context if available (handles UUID)
func ExtractCustomerID(ctx context.Context) string {
	if customerID := ctx.Value(customerIDContextKey); customerID != nil {
		if id, ok := customerID.(interface{ String() string }); ok {
			return id.String()
		}
		if id, ok := customerID.(string); ok {
			return id
		}
	}
	return ""
}
