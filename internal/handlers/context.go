package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/supportmind/memory-core/internal/assembler"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/request"
)

// ContextHandler handles context assembly requests
type ContextHandler struct {
	assembler *assembler.Assembler
}

// NewContextHandler creates a new context handler
func NewContextHandler(asm *assembler.Assembler) *ContextHandler {
	return &ContextHandler{assembler: asm}
}

// RegisterRoutes registers context routes on the given router
// The router should already have the /customers prefix
func (h *ContextHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/context", h.GetContext).Methods("GET")
}

// ContextResponse is the assembled context plus the rendered prompt.
type ContextResponse struct {
	Context *models.Context `json:"context"`
	Prompt  string          `json:"prompt"`
}

// GetContext assembles the response context for one customer.
func (h *ContextHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	tenant := request.TenantFromContext(r)
	if tenant == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Tenant not found in context")
		return
	}

	vars := mux.Vars(r)
	customerID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid customer ID")
		return
	}

	// Zero falls through to the assembler's configured default.
	recentLimit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			recentLimit = parsed
		}
	}

	built, err := h.assembler.Build(r.Context(), tenant, customerID, recentLimit)
	if err != nil {
		if errs.IsNotFound(err) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Customer not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to assemble context")
		return
	}

	respondJSON(w, http.StatusOK, ContextResponse{
		Context: built,
		Prompt:  built.Prompt,
	})
}
