package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/services/ai"
)

// mockTenantRepo is a mock implementation of TenantRepositoryInterface
type mockTenantRepo struct {
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	incrementFunc     func(ctx context.Context, id uuid.UUID, conversations, messages int64) error
	incrementedConvos int64
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &models.Tenant{ID: id, Name: "Test Tenant"}, nil
}

func (m *mockTenantRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Tenant, error) {
	return nil, errs.NotFound("tenant", hash)
}

func (m *mockTenantRepo) SetRetention(ctx context.Context, id uuid.UUID, periods int) error {
	return nil
}

func (m *mockTenantRepo) IncrementCounters(ctx context.Context, id uuid.UUID, conversations, messages int64) error {
	m.incrementedConvos += conversations
	if m.incrementFunc != nil {
		return m.incrementFunc(ctx, id, conversations, messages)
	}
	return nil
}

var _ database.TenantRepositoryInterface = (*mockTenantRepo)(nil)

// mockCustomerRepo is a mock implementation of CustomerRepositoryInterface
type mockCustomerRepo struct {
	getByIDFunc func(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error)
	addTagsFunc func(ctx context.Context, id uuid.UUID, tags []string) error
	addedTags   []string
}

func (m *mockCustomerRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, tenantID, id)
	}
	return &models.Customer{ID: id, TenantID: tenantID}, nil
}

func (m *mockCustomerRepo) UpdateProfile(ctx context.Context, id uuid.UUID, summary string, preferences map[string]any, tags, insights []string) error {
	return nil
}

func (m *mockCustomerRepo) AddTags(ctx context.Context, id uuid.UUID, tags []string) error {
	m.addedTags = append(m.addedTags, tags...)
	if m.addTagsFunc != nil {
		return m.addTagsFunc(ctx, id, tags)
	}
	return nil
}

func (m *mockCustomerRepo) ListWithArchivableConversations(ctx context.Context, tenantID uuid.UUID, cutoff models.PeriodKey) ([]uuid.UUID, error) {
	return nil, nil
}

var _ database.CustomerRepositoryInterface = (*mockCustomerRepo)(nil)

// mockConversationRepo is a mock implementation of ConversationRepositoryInterface
type mockConversationRepo struct {
	createFunc        func(ctx context.Context, conv *models.Conversation) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	appendFunc        func(ctx context.Context, msg *models.Message) error
	listCurrentFunc   func(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) ([]*models.Conversation, error)
	listRecentFunc    func(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Message, error)
	updateClassFunc   func(ctx context.Context, id uuid.UUID, c *models.Classification) error
	created           []*models.Conversation
	appended          []*models.Message
	classified        []*models.Classification
	classifiedConvIDs []uuid.UUID
}

func (m *mockConversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.PeriodKey == "" {
		conv.PeriodKey = models.CurrentPeriod()
	}
	conv.State = models.ConversationStateCurrent
	m.created = append(m.created, conv)
	if m.createFunc != nil {
		return m.createFunc(ctx, conv)
	}
	return nil
}

func (m *mockConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, errs.NotFound("conversation", id.String())
}

func (m *mockConversationRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.appended = append(m.appended, msg)
	if m.appendFunc != nil {
		return m.appendFunc(ctx, msg)
	}
	return nil
}

func (m *mockConversationRepo) ListCurrent(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) ([]*models.Conversation, error) {
	if m.listCurrentFunc != nil {
		return m.listCurrentFunc(ctx, customerID, period)
	}
	return nil, nil
}

func (m *mockConversationRepo) ListCurrentBefore(ctx context.Context, customerID uuid.UUID, cutoff models.PeriodKey) ([]*models.Conversation, error) {
	return nil, nil
}

func (m *mockConversationRepo) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	return nil, nil
}

func (m *mockConversationRepo) ListRecentMessages(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Message, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, customerID, limit)
	}
	return nil, nil
}

func (m *mockConversationRepo) AddTags(ctx context.Context, id uuid.UUID, tags []string) error {
	return nil
}

func (m *mockConversationRepo) UpdateClassification(ctx context.Context, id uuid.UUID, c *models.Classification) error {
	m.classified = append(m.classified, c)
	m.classifiedConvIDs = append(m.classifiedConvIDs, id)
	if m.updateClassFunc != nil {
		return m.updateClassFunc(ctx, id, c)
	}
	return nil
}

var _ database.ConversationRepositoryInterface = (*mockConversationRepo)(nil)

// mockSummaryRepo is a mock implementation of SummaryRepositoryInterface
type mockSummaryRepo struct {
	listRecentFunc func(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Summary, error)
}

func (m *mockSummaryRepo) Exists(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) (bool, error) {
	return false, nil
}

func (m *mockSummaryRepo) ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Summary, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, customerID, limit)
	}
	return nil, nil
}

func (m *mockSummaryRepo) CreateWithArchival(ctx context.Context, summary *models.Summary, conversationIDs []uuid.UUID) error {
	return nil
}

var _ database.SummaryRepositoryInterface = (*mockSummaryRepo)(nil)

// mockLearningRepo is a mock implementation of LearningRepositoryInterface
type mockLearningRepo struct {
	records  map[uuid.UUID]*models.LearningRecord
	analyses []*models.FailureAnalysis
}

func newMockLearningRepo() *mockLearningRepo {
	return &mockLearningRepo{records: make(map[uuid.UUID]*models.LearningRecord)}
}

func (m *mockLearningRepo) CreateRecord(ctx context.Context, record *models.LearningRecord) error {
	m.records[record.ID] = record
	return nil
}

func (m *mockLearningRepo) GetRecord(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, errs.NotFound("learning record", id.String())
	}
	return record, nil
}

func (m *mockLearningRepo) AttachFeedback(ctx context.Context, tenantID, id uuid.UUID, feedback *models.Feedback) error {
	record, ok := m.records[id]
	if !ok || record.TenantID != tenantID {
		return errs.NotFound("learning record", id.String())
	}
	record.Feedback = feedback
	return nil
}

func (m *mockLearningRepo) ListRecordsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*models.LearningRecord, error) {
	var out []*models.LearningRecord
	for _, r := range m.records {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLearningRepo) CreateFailureAnalysis(ctx context.Context, analysis *models.FailureAnalysis) error {
	m.analyses = append(m.analyses, analysis)
	return nil
}

var _ database.LearningRepositoryInterface = (*mockLearningRepo)(nil)

// mockAIProvider is a mock implementation of ai.Provider
type mockAIProvider struct {
	generateResponseFunc func(ctx context.Context, prompt, userMessage string) (string, error)
}

func (m *mockAIProvider) Summarize(ctx context.Context, req *ai.SummaryRequest) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockAIProvider) GenerateProfile(ctx context.Context, req *ai.ProfileRequest) (*ai.ProfileResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAIProvider) GenerateResponse(ctx context.Context, prompt, userMessage string) (string, error) {
	if m.generateResponseFunc != nil {
		return m.generateResponseFunc(ctx, prompt, userMessage)
	}
	return "Happy to help with that.", nil
}

func (m *mockAIProvider) Classify(ctx context.Context, text string) (*models.Classification, error) {
	return nil, errors.New("not implemented")
}

var _ ai.Provider = (*mockAIProvider)(nil)
