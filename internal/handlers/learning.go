package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/learning"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/request"
	"github.com/supportmind/memory-core/internal/validation"
)

const (
	// DefaultPatternWindowDays is the default lookback for pattern analysis
	DefaultPatternWindowDays = 30
	// MaxPatternWindowDays caps the pattern analysis lookback
	MaxPatternWindowDays = 365
)

// LearningHandler handles feedback and analysis requests
type LearningHandler struct {
	engine *learning.Engine
}

// NewLearningHandler creates a new learning handler
func NewLearningHandler(engine *learning.Engine) *LearningHandler {
	return &LearningHandler{engine: engine}
}

// RegisterRoutes registers learning routes on the given router
// The router should already have the /learning prefix
func (h *LearningHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/records/{id}/feedback", h.SubmitFeedback).Methods("POST")
	r.HandleFunc("/patterns", h.GetPatterns).Methods("GET")
	r.HandleFunc("/optimize", h.GetOptimizations).Methods("GET")
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
}

// FeedbackRequest is a human rating for one recorded AI turn.
type FeedbackRequest struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Helpful  bool   `json:"helpful"`
	Category string `json:"category,omitempty"`
	Comment  string `json:"comment,omitempty" validate:"max=2000"`
}

// SubmitFeedback attaches feedback to a learning record. Negative
// feedback triggers failure analysis before the response returns.
func (h *LearningHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	tenant := request.TenantFromContext(r)
	if tenant == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Tenant not found in context")
		return
	}

	vars := mux.Vars(r)
	recordID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid record ID")
		return
	}

	var req FeedbackRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	if req.Category != "" {
		if err := validation.ValidateFeedbackCategory(req.Category); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
	}

	feedback := &models.Feedback{
		Rating:   req.Rating,
		Helpful:  req.Helpful,
		Category: models.FeedbackCategory(req.Category),
		Comment:  validation.SanitizeText(req.Comment),
	}

	if err := h.engine.RecordFeedback(r.Context(), tenant.ID, recordID, feedback); err != nil {
		if errs.IsNotFound(err) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learning record not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to record feedback")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"record_id": recordID,
		"negative":  feedback.Negative(),
	})
}

// GetPatterns analyzes recent interactions for the tenant.
func (h *LearningHandler) GetPatterns(w http.ResponseWriter, r *http.Request) {
	tenant := request.TenantFromContext(r)
	if tenant == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Tenant not found in context")
		return
	}

	days := DefaultPatternWindowDays
	if d := r.URL.Query().Get("window_days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "window_days must be a positive integer")
			return
		}
		if parsed > MaxPatternWindowDays {
			parsed = MaxPatternWindowDays
		}
		days = parsed
	}

	report, err := h.engine.AnalyzePatterns(r.Context(), tenant.ID, time.Duration(days)*24*time.Hour)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to analyze patterns")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetOptimizations returns prompt and threshold recommendations.
func (h *LearningHandler) GetOptimizations(w http.ResponseWriter, r *http.Request) {
	tenant := request.TenantFromContext(r)
	if tenant == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Tenant not found in context")
		return
	}

	report, err := h.engine.Optimize(r.Context(), tenant)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate optimizations")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetStats returns the in-memory metrics snapshot.
func (h *LearningHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	tenant := request.TenantFromContext(r)
	if tenant == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Tenant not found in context")
		return
	}

	topN := 5
	if n := r.URL.Query().Get("top"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil && parsed > 0 {
			topN = parsed
		}
	}

	respondJSON(w, http.StatusOK, h.engine.Stats(topN))
}
