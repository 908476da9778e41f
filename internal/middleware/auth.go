package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/request"
)

// TenantFromContext extracts the tenant from the request context
func TenantFromContext(r *http.Request) *models.Tenant {
	return request.TenantFromContext(r)
}

// HashAPIKey returns the hex-encoded SHA-256 of an API key. Only the
// hash is stored and compared; raw keys never touch the database.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Auth creates authentication middleware that resolves the X-API-Key
// header to a tenant and attaches it to the request context.
func Auth(tenants database.TenantRepositoryInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				respondError(w, http.StatusUnauthorized, "Missing X-API-Key header")
				return
			}

			ctx := r.Context()
			tenant, err := tenants.GetByAPIKeyHash(ctx, HashAPIKey(apiKey))
			if err != nil {
				if errs.IsNotFound(err) {
					respondError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				log.Printf("Database error while resolving tenant: %v", err)
				respondError(w, http.StatusInternalServerError, "Database error")
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithTenant(ctx, tenant)))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
