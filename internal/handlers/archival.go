package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/supportmind/memory-core/internal/queue"
	"github.com/supportmind/memory-core/internal/request"
)

// ArchivalHandler handles archival trigger requests
type ArchivalHandler struct {
	scheduler *queue.Scheduler
}

// NewArchivalHandler creates a new archival handler
func NewArchivalHandler(scheduler *queue.Scheduler) *ArchivalHandler {
	return &ArchivalHandler{scheduler: scheduler}
}

// RegisterRoutes registers archival routes on the given router
// The router should already have the /archival prefix
func (h *ArchivalHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/run", h.RunArchival).Methods("POST")
}

// RunArchivalRequest optionally narrows the run to one customer.
type RunArchivalRequest struct {
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
}

// RunArchival enqueues an archival job for the tenant. The run itself
// happens asynchronously on a worker.
func (h *ArchivalHandler) RunArchival(w http.ResponseWriter, r *http.Request) {
	tenant := request.TenantFromContext(r)
	if tenant == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Tenant not found in context")
		return
	}

	var req RunArchivalRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
			return
		}
	}

	job, err := h.scheduler.ScheduleArchival(r.Context(), tenant.ID, req.CustomerID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to enqueue archival job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    job.ID,
		"job_type":  job.Type,
		"tenant_id": job.TenantID,
	})
}
