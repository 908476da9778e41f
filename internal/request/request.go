package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/supportmind/memory-core/internal/models"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// TenantContextKey returns the context key used for the tenant. Exposed for tests that inject non-tenant values.
func TenantContextKey() contextKey { return tenantContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithTenant returns a context with the tenant attached.
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey, tenant)
}

// TenantFromContext returns the tenant from the request context, or nil if missing or wrong type.
func TenantFromContext(r *http.Request) *models.Tenant {
	t, _ := r.Context().Value(tenantContextKey).(*models.Tenant)
	return t
}
