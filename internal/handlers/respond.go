package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/supportmind/memory-core/internal/assembler"
	"github.com/supportmind/memory-core/internal/classify"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/learning"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/request"
	"github.com/supportmind/memory-core/internal/services/ai"
	"github.com/supportmind/memory-core/internal/validation"
)

// RespondHandler drives one AI response turn: assemble context, gate on
// confidence and context quality, generate, record the outcome.
type RespondHandler struct {
	assembler  *assembler.Assembler
	classifier *classify.Engine
	provider   ai.Provider
	learning   *learning.Engine
}

// NewRespondHandler creates a new respond handler
func NewRespondHandler(
	asm *assembler.Assembler,
	classifier *classify.Engine,
	provider ai.Provider,
	learningEngine *learning.Engine,
) *RespondHandler {
	return &RespondHandler{
		assembler:  asm,
		classifier: classifier,
		provider:   provider,
		learning:   learningEngine,
	}
}

// RegisterRoutes registers respond routes on the given router
// The router should already have the /customers prefix
func (h *RespondHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/respond", h.Respond).Methods("POST")
}

// RespondRequest carries the inbound customer message to answer.
type RespondRequest struct {
	Message  string `json:"message" validate:"required,min=1,max=20000"`
	Platform string `json:"platform,omitempty"`
}

// RespondResponse is the outcome of one response turn. When the gate
// declines to auto-respond, Responded is false and Reason explains why.
type RespondResponse struct {
	Responded      bool                   `json:"responded"`
	Response       string                 `json:"response,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	RecordID       uuid.UUID              `json:"record_id"`
	Classification *models.Classification `json:"classification"`
	QualityScore   int                    `json:"quality_score"`
	QualityTier    models.QualityTier     `json:"quality_tier"`
}

// Respond builds the customer's context, gates on classification
// confidence and context quality, and generates an AI response when the
// gate passes. Every turn is recorded for learning, answered or not.
func (h *RespondHandler) Respond(w http.ResponseWriter, r *http.Request) {
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

	var req RespondRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
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

	req.Message = validation.SanitizeText(req.Message)
	if req.Message == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Message is required and cannot be empty after sanitization")
		return
	}

	ctx := r.Context()
	started := time.Now()

	classification := h.classifier.Classify(ctx, req.Message, req.Platform)

	built, err := h.assembler.Build(ctx, tenant, customerID, 0)
	if err != nil {
		if errs.IsNotFound(err) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Customer not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to assemble context")
		return
	}

	record := &models.LearningRecord{
		ID:               uuid.New(),
		TenantID:         tenant.ID,
		CustomerID:       customerID,
		InputText:        req.Message,
		Platform:         req.Platform,
		Category:         classification.Category,
		Sentiment:        classification.Sentiment,
		Confidence:       classification.Confidence,
		ContextQuality:   built.QualityScore,
		ContextMessages:  len(built.Messages),
		ContextSummaries: len(built.Summaries),
		HadCustomPrompt:  tenant.CustomPrompt != "",
	}

	result := RespondResponse{
		RecordID:       record.ID,
		Classification: classification,
		QualityScore:   built.QualityScore,
		QualityTier:    built.QualityTier,
	}

	if reason := gateReason(tenant, classification, built); reason != "" {
		result.Reason = reason
		record.LatencyMS = time.Since(started).Milliseconds()
		h.learning.RecordInteraction(ctx, record)
		respondJSON(w, http.StatusOK, result)
		return
	}

	response, err := h.provider.GenerateResponse(ctx, built.Prompt, req.Message)
	if err != nil {
		record.LatencyMS = time.Since(started).Milliseconds()
		h.learning.RecordInteraction(ctx, record)
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Response generation failed")
		return
	}

	record.Responded = true
	record.ResponseText = response
	record.LatencyMS = time.Since(started).Milliseconds()
	h.learning.RecordInteraction(ctx, record)

	result.Responded = true
	result.Response = response
	respondJSON(w, http.StatusOK, result)
}

// gateReason returns a non-empty reason when the turn should be handed to
// a human instead of auto-answered.
func gateReason(tenant *models.Tenant, c *models.Classification, built *models.Context) string {
	if c.Confidence < tenant.EffectiveAutoRespondThreshold() {
		return fmt.Sprintf("classification confidence %.2f below auto-respond threshold %.2f",
			c.Confidence, tenant.EffectiveAutoRespondThreshold())
	}
	if built.QualityTier == models.TierLimited {
		return "context quality too limited for an automatic response"
	}
	return ""
}
