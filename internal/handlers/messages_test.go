package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/supportmind/memory-core/internal/classify"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/request"
)

func newMessagesRouter(h *MessageHandler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/api/v1/messages").Subrouter())
	return r
}

func authedRequest(t *testing.T, tenant *models.Tenant, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	if tenant != nil {
		r = r.WithContext(request.WithTenant(r.Context(), tenant))
	}
	return r
}

func TestMessageHandler_AppendMessage_CreatesConversation(t *testing.T) {
	t.Parallel()

	tenant := &models.Tenant{ID: uuid.New(), Name: "Acme"}
	customerID := uuid.New()

	convRepo := &mockConversationRepo{}
	tenantRepo := &mockTenantRepo{}
	custRepo := &mockCustomerRepo{}
	h := NewMessageHandler(convRepo, custRepo, tenantRepo, classify.NewEngine())

	body := map[string]any{
		"customer_id": customerID,
		"platform":    "telegram",
		"content":     "I need urgent help, my order is broken",
	}
	w := httptest.NewRecorder()
	newMessagesRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/messages", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	if len(convRepo.created) != 1 {
		t.Fatalf("created conversations = %d, want 1", len(convRepo.created))
	}
	conv := convRepo.created[0]
	if conv.TenantID != tenant.ID || conv.CustomerID != customerID {
		t.Errorf("conversation scoped to %s/%s, want %s/%s", conv.TenantID, conv.CustomerID, tenant.ID, customerID)
	}
	if conv.Category != models.CategorySupport {
		t.Errorf("Category = %s, want support", conv.Category)
	}
	if conv.Priority != models.PriorityHigh {
		t.Errorf("Priority = %s, want high", conv.Priority)
	}
	if len(convRepo.appended) != 1 {
		t.Fatalf("appended messages = %d, want 1", len(convRepo.appended))
	}
	if convRepo.appended[0].Role != models.RoleCustomer {
		t.Errorf("Role = %s, want customer", convRepo.appended[0].Role)
	}
	if tenantRepo.incrementedConvos != 1 {
		t.Errorf("conversation counter bumps = %d, want 1", tenantRepo.incrementedConvos)
	}

	// Classification tags land on the customer profile too.
	found := false
	for _, tag := range custRepo.addedTags {
		if tag == "platform:telegram" {
			found = true
		}
	}
	if !found {
		t.Errorf("customer tags = %v, want to include platform:telegram", custRepo.addedTags)
	}

	var envelope struct {
		Data AppendMessageResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Data.ConversationCreated {
		t.Error("ConversationCreated = false, want true")
	}
	if envelope.Data.Classification == nil || envelope.Data.Classification.Category != models.CategorySupport {
		t.Errorf("Classification = %+v, want support", envelope.Data.Classification)
	}
}

func TestMessageHandler_AppendMessage_ReusesCurrentConversation(t *testing.T) {
	t.Parallel()

	tenant := &models.Tenant{ID: uuid.New()}
	customerID := uuid.New()
	existing := &models.Conversation{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		CustomerID: customerID,
		PeriodKey:  models.CurrentPeriod(),
		State:      models.ConversationStateCurrent,
	}

	convRepo := &mockConversationRepo{
		listCurrentFunc: func(ctx context.Context, gotCustomer uuid.UUID, period models.PeriodKey) ([]*models.Conversation, error) {
			return []*models.Conversation{existing}, nil
		},
	}
	h := NewMessageHandler(convRepo, &mockCustomerRepo{}, &mockTenantRepo{}, classify.NewEngine())

	body := map[string]any{
		"customer_id": customerID,
		"content":     "where is my package, I want delivery status",
	}
	w := httptest.NewRecorder()
	newMessagesRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/messages", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if len(convRepo.created) != 0 {
		t.Errorf("created conversations = %d, want 0", len(convRepo.created))
	}
	if len(convRepo.appended) != 1 || convRepo.appended[0].ConversationID != existing.ID {
		t.Fatalf("appended = %+v, want one message on %s", convRepo.appended, existing.ID)
	}
	if len(convRepo.classified) != 1 {
		t.Fatalf("classification updates = %d, want 1", len(convRepo.classified))
	}
	if convRepo.classifiedConvIDs[0] != existing.ID {
		t.Errorf("classification applied to %s, want %s", convRepo.classifiedConvIDs[0], existing.ID)
	}
}

func TestMessageHandler_AppendMessage_TagWriteFailureTolerated(t *testing.T) {
	t.Parallel()

	tenant := &models.Tenant{ID: uuid.New()}
	custRepo := &mockCustomerRepo{
		addTagsFunc: func(ctx context.Context, id uuid.UUID, tags []string) error {
			return errors.New("customers table locked")
		},
	}
	h := NewMessageHandler(&mockConversationRepo{}, custRepo, &mockTenantRepo{}, classify.NewEngine())

	body := map[string]any{
		"customer_id": uuid.New(),
		"platform":    "email",
		"content":     "please refund my last invoice",
	}
	w := httptest.NewRecorder()
	newMessagesRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/messages", body))

	// The message append already succeeded; a failed profile tag write
	// must not fail the request.
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
}

func TestMessageHandler_AppendMessage_ExplicitConversation(t *testing.T) {
	t.Parallel()

	tenant := &models.Tenant{ID: uuid.New()}
	customerID := uuid.New()
	conv := &models.Conversation{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		CustomerID: customerID,
		PeriodKey:  models.CurrentPeriod(),
		State:      models.ConversationStateCurrent,
	}

	t.Run("owned conversation", func(t *testing.T) {
		t.Parallel()

		convRepo := &mockConversationRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
				return conv, nil
			},
		}
		h := NewMessageHandler(convRepo, &mockCustomerRepo{}, &mockTenantRepo{}, classify.NewEngine())

		body := map[string]any{
			"customer_id":     customerID,
			"conversation_id": conv.ID,
			"role":            "assistant",
			"content":         "Your refund was processed this morning.",
		}
		w := httptest.NewRecorder()
		newMessagesRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/messages", body))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
		}
		// Assistant messages are not classified.
		if len(convRepo.classified) != 0 {
			t.Errorf("classification updates = %d, want 0 for assistant message", len(convRepo.classified))
		}
	})

	t.Run("conversation of another customer", func(t *testing.T) {
		t.Parallel()

		convRepo := &mockConversationRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
				return conv, nil
			},
		}
		h := NewMessageHandler(convRepo, &mockCustomerRepo{}, &mockTenantRepo{}, classify.NewEngine())

		body := map[string]any{
			"customer_id":     uuid.New(),
			"conversation_id": conv.ID,
			"content":         "hello there",
		}
		w := httptest.NewRecorder()
		newMessagesRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/messages", body))

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", w.Code)
		}
		if len(convRepo.appended) != 0 {
			t.Errorf("appended = %d, want 0", len(convRepo.appended))
		}
	})
}

func TestMessageHandler_AppendMessage_ArchivedConversation(t *testing.T) {
	t.Parallel()

	tenant := &models.Tenant{ID: uuid.New()}
	customerID := uuid.New()
	conv := &models.Conversation{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		CustomerID: customerID,
		State:      models.ConversationStateArchived,
	}

	convRepo := &mockConversationRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
			return conv, nil
		},
		appendFunc: func(ctx context.Context, msg *models.Message) error {
			return errs.Conflict("conversation is archived")
		},
	}
	h := NewMessageHandler(convRepo, &mockCustomerRepo{}, &mockTenantRepo{}, classify.NewEngine())

	body := map[string]any{
		"customer_id":     customerID,
		"conversation_id": conv.ID,
		"content":         "one more thing",
	}
	w := httptest.NewRecorder()
	newMessagesRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/messages", body))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestMessageHandler_AppendMessage_Validation(t *testing.T) {
	t.Parallel()

	tenant := &models.Tenant{ID: uuid.New()}

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{
			name:   "missing customer",
			body:   map[string]any{"content": "hello"},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing content",
			body:   map[string]any{"customer_id": uuid.New()},
			status: http.StatusBadRequest,
		},
		{
			name:   "whitespace-only content",
			body:   map[string]any{"customer_id": uuid.New(), "content": "   \t  "},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid role",
			body:   map[string]any{"customer_id": uuid.New(), "content": "hi", "role": "robot"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown customer",
			body:   map[string]any{"customer_id": uuid.New(), "content": "hi"},
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			customers := &mockCustomerRepo{}
			if tt.name == "unknown customer" {
				customers.getByIDFunc = func(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
					return nil, errs.NotFound("customer", id.String())
				}
			}
			h := NewMessageHandler(&mockConversationRepo{}, customers, &mockTenantRepo{}, classify.NewEngine())

			w := httptest.NewRecorder()
			newMessagesRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/messages", tt.body))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestMessageHandler_AppendMessage_RequiresTenant(t *testing.T) {
	t.Parallel()

	h := NewMessageHandler(&mockConversationRepo{}, &mockCustomerRepo{}, &mockTenantRepo{}, classify.NewEngine())

	body := map[string]any{"customer_id": uuid.New(), "content": "hi"}
	w := httptest.NewRecorder()
	newMessagesRouter(h).ServeHTTP(w, authedRequest(t, nil, "POST", "/api/v1/messages", body))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
