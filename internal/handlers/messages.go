package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/supportmind/memory-core/internal/classify"
	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/request"
	"github.com/supportmind/memory-core/internal/validation"
)

const (
	// MaxMessageContentLength is the maximum length for message content
	MaxMessageContentLength = 20000
)

// MessageHandler handles message ingestion requests
type MessageHandler struct {
	conversations database.ConversationRepositoryInterface
	customers     database.CustomerRepositoryInterface
	tenants       database.TenantRepositoryInterface
	classifier    *classify.Engine
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(
	conversations database.ConversationRepositoryInterface,
	customers database.CustomerRepositoryInterface,
	tenants database.TenantRepositoryInterface,
	classifier *classify.Engine,
) *MessageHandler {
	return &MessageHandler{
		conversations: conversations,
		customers:     customers,
		tenants:       tenants,
		classifier:    classifier,
	}
}

// RegisterRoutes registers message routes on the given router
func (h *MessageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.AppendMessage).Methods("POST")
}

// AppendMessageRequest represents a message ingestion request
type AppendMessageRequest struct {
	CustomerID     uuid.UUID  `json:"customer_id" validate:"required"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Role           string     `json:"role,omitempty"`
	Platform       string     `json:"platform,omitempty"`
	Content        string     `json:"content" validate:"required,min=1,max=20000"`
}

// AppendMessageResponse echoes the stored message location plus the
// classification derived from the content.
type AppendMessageResponse struct {
	ConversationID      uuid.UUID              `json:"conversation_id"`
	MessageID           uuid.UUID              `json:"message_id"`
	PeriodKey           models.PeriodKey       `json:"period_key"`
	ConversationCreated bool                   `json:"conversation_created"`
	Classification      *models.Classification `json:"classification,omitempty"`
}

// AppendMessage ingests one message. A missing conversation ID routes the
// message to the customer's most recent CURRENT conversation in the
// current period, creating one when none exists. Customer messages are
// classified and the classification is persisted on the conversation.
func (h *MessageHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	tenant := request.TenantFromContext(r)
	if tenant == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Tenant not found in context")
		return
	}

	var req AppendMessageRequest
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

	if req.Role == "" {
		req.Role = string(models.RoleCustomer)
	}
	if err := validation.ValidateMessageRole(req.Role); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	req.Content = validation.SanitizeText(req.Content)
	if req.Content == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Content is required and cannot be empty after sanitization")
		return
	}
	if len(req.Content) > MaxMessageContentLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Content exceeds maximum length of %d characters", MaxMessageContentLength))
		return
	}

	ctx := r.Context()

	// Verify the customer belongs to this tenant before touching anything.
	if _, err := h.customers.GetByID(ctx, tenant.ID, req.CustomerID); err != nil {
		if errs.IsNotFound(err) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Customer not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load customer")
		return
	}

	var classification *models.Classification
	if models.MessageRole(req.Role) == models.RoleCustomer {
		classification = h.classifier.Classify(ctx, req.Content, req.Platform)
	}

	conv, created, err := h.resolveConversation(r, tenant, &req, classification)
	if err != nil {
		if errs.IsNotFound(err) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to resolve conversation")
		return
	}

	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           models.MessageRole(req.Role),
		Content:        req.Content,
		Platform:       req.Platform,
	}

	if err := h.conversations.AppendMessage(ctx, msg); err != nil {
		if errs.IsConflict(err) {
			respondJSONError(w, http.StatusConflict, "Conflict", "Conversation is archived and immutable")
			return
		}
		if errs.IsNotFound(err) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to append message")
		return
	}

	// Classification on an existing conversation is merged after the
	// append; the message itself is already durable.
	if classification != nil && !created {
		if err := h.conversations.UpdateClassification(ctx, conv.ID, classification); err != nil && !errs.IsNotFound(err) {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update classification")
			return
		}
	}

	// Classification tags also accumulate on the customer profile. Like
	// the tenant counters, this is best-effort.
	if classification != nil && len(classification.Tags) > 0 {
		_ = h.customers.AddTags(ctx, req.CustomerID, classification.Tags)
	}

	respondJSON(w, http.StatusCreated, AppendMessageResponse{
		ConversationID:      conv.ID,
		MessageID:           msg.ID,
		PeriodKey:           conv.PeriodKey,
		ConversationCreated: created,
		Classification:      classification,
	})
}

// resolveConversation finds or creates the conversation the message
// belongs to. Returns the conversation and whether it was just created.
func (h *MessageHandler) resolveConversation(
	r *http.Request,
	tenant *models.Tenant,
	req *AppendMessageRequest,
	classification *models.Classification,
) (*models.Conversation, bool, error) {
	ctx := r.Context()

	if req.ConversationID != nil {
		conv, err := h.conversations.GetByID(ctx, *req.ConversationID)
		if err != nil {
			return nil, false, err
		}
		if conv.TenantID != tenant.ID || conv.CustomerID != req.CustomerID {
			return nil, false, errs.NotFound("conversation", req.ConversationID.String())
		}
		return conv, false, nil
	}

	period := models.CurrentPeriod()
	existing, err := h.conversations.ListCurrent(ctx, req.CustomerID, period)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing[0], false, nil
	}

	conv := &models.Conversation{
		TenantID:   tenant.ID,
		CustomerID: req.CustomerID,
		PeriodKey:  period,
	}
	if classification != nil {
		conv.Category = classification.Category
		conv.Priority = classification.Priority
		conv.Tags = classification.Tags
		conv.Subject = classification.Subject
	}
	if err := h.conversations.Create(ctx, conv); err != nil {
		return nil, false, err
	}
	if err := h.tenants.IncrementCounters(ctx, tenant.ID, 1, 0); err != nil {
		// Counter drift is tolerable; the conversation itself is durable.
		return conv, true, nil
	}
	return conv, true, nil
}
