package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/supportmind/memory-core/internal/models"
)

// The repository interfaces exist so the archival pipeline, assembler,
// learning engine and handlers can be tested against fakes instead of a
// live database.

// TenantRepositoryInterface defines tenant repository operations.
type TenantRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Tenant, error)
	SetRetention(ctx context.Context, id uuid.UUID, periods int) error
	IncrementCounters(ctx context.Context, id uuid.UUID, conversations, messages int64) error
}

// CustomerRepositoryInterface defines customer repository operations.
type CustomerRepositoryInterface interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, summary string, preferences map[string]any, tags, insights []string) error
	AddTags(ctx context.Context, id uuid.UUID, tags []string) error
	ListWithArchivableConversations(ctx context.Context, tenantID uuid.UUID, cutoff models.PeriodKey) ([]uuid.UUID, error)
}

// ConversationRepositoryInterface defines conversation store operations.
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListCurrent(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) ([]*models.Conversation, error)
	ListCurrentBefore(ctx context.Context, customerID uuid.UUID, cutoff models.PeriodKey) ([]*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error)
	ListRecentMessages(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Message, error)
	AddTags(ctx context.Context, id uuid.UUID, tags []string) error
	UpdateClassification(ctx context.Context, id uuid.UUID, c *models.Classification) error
}

// SummaryRepositoryInterface defines summary repository operations.
type SummaryRepositoryInterface interface {
	Exists(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) (bool, error)
	ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Summary, error)
	CreateWithArchival(ctx context.Context, summary *models.Summary, conversationIDs []uuid.UUID) error
}

// LearningRepositoryInterface defines learning record operations.
type LearningRepositoryInterface interface {
	CreateRecord(ctx context.Context, record *models.LearningRecord) error
	GetRecord(ctx context.Context, id uuid.UUID) (*models.LearningRecord, error)
	AttachFeedback(ctx context.Context, tenantID, id uuid.UUID, feedback *models.Feedback) error
	ListRecordsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]*models.LearningRecord, error)
	CreateFailureAnalysis(ctx context.Context, analysis *models.FailureAnalysis) error
}

// Ensure concrete types implement the interfaces
var (
	_ TenantRepositoryInterface       = (*TenantRepository)(nil)
	_ CustomerRepositoryInterface     = (*CustomerRepository)(nil)
	_ ConversationRepositoryInterface = (*ConversationRepository)(nil)
	_ SummaryRepositoryInterface      = (*SummaryRepository)(nil)
	_ LearningRepositoryInterface     = (*LearningRepository)(nil)
)
