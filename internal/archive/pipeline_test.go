package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/supportmind/memory-core/internal/database"
	"github.com/supportmind/memory-core/internal/errs"
	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/services/ai"
)

// fakeStore is an in-memory backing store shared by the fake repositories
// so archival behavior can be exercised end to end.
type fakeStore struct {
	mu            sync.Mutex
	customers     map[uuid.UUID]*models.Customer
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]*models.Message // by conversation
	summaries     map[string]*models.Summary      // by customer|period
	profileCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers:     make(map[uuid.UUID]*models.Customer),
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]*models.Message),
		summaries:     make(map[string]*models.Summary),
	}
}

func (s *fakeStore) addCustomer(tenantID uuid.UUID) *models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Customer{ID: uuid.New(), TenantID: tenantID, Name: "customer"}
	s.customers[c.ID] = c
	return c
}

func (s *fakeStore) addConversation(customerID uuid.UUID, period models.PeriodKey, messageCount int) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &models.Conversation{
		ID:         uuid.New(),
		CustomerID: customerID,
		PeriodKey:  period,
		State:      models.ConversationStateCurrent,
	}
	s.conversations[conv.ID] = conv
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < messageCount; i++ {
		s.messages[conv.ID] = append(s.messages[conv.ID], &models.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			Role:           models.RoleCustomer,
			Content:        fmt.Sprintf("message %d", i),
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return conv
}

func (s *fakeStore) summaryKey(customerID uuid.UUID, period models.PeriodKey) string {
	return customerID.String() + "|" + string(period)
}

type fakeCustomerRepo struct{ store *fakeStore }

func (r *fakeCustomerRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.customers[id]
	if !ok {
		return nil, errs.NotFound("customer", id.String())
	}
	return c, nil
}

func (r *fakeCustomerRepo) UpdateProfile(ctx context.Context, id uuid.UUID, summary string, preferences map[string]any, tags, insights []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.customers[id]
	if !ok {
		return errs.NotFound("customer", id.String())
	}
	c.ProfileSummary = summary
	c.Preferences = preferences
	c.Tags = tags
	c.Insights = insights
	r.store.profileCalls++
	return nil
}

func (r *fakeCustomerRepo) AddTags(ctx context.Context, id uuid.UUID, tags []string) error {
	return nil
}

func (r *fakeCustomerRepo) ListWithArchivableConversations(ctx context.Context, tenantID uuid.UUID, cutoff models.PeriodKey) ([]uuid.UUID, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, conv := range r.store.conversations {
		if conv.State == models.ConversationStateCurrent && conv.PeriodKey.Before(cutoff) && !seen[conv.CustomerID] {
			seen[conv.CustomerID] = true
			ids = append(ids, conv.CustomerID)
		}
	}
	return ids, nil
}

type fakeConversationRepo struct{ store *fakeStore }

func (r *fakeConversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	return nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return nil, errs.NotFound("conversation", id.String())
}

func (r *fakeConversationRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	return nil
}

func (r *fakeConversationRepo) ListCurrent(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) ([]*models.Conversation, error) {
	return nil, nil
}

func (r *fakeConversationRepo) ListCurrentBefore(ctx context.Context, customerID uuid.UUID, cutoff models.PeriodKey) ([]*models.Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*models.Conversation
	for _, conv := range r.store.conversations {
		if conv.CustomerID == customerID && conv.State == models.ConversationStateCurrent && conv.PeriodKey.Before(cutoff) {
			result = append(result, conv)
		}
	}
	return result, nil
}

func (r *fakeConversationRepo) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.messages[conversationID], nil
}

func (r *fakeConversationRepo) ListRecentMessages(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Message, error) {
	return nil, nil
}

func (r *fakeConversationRepo) AddTags(ctx context.Context, id uuid.UUID, tags []string) error {
	return nil
}

func (r *fakeConversationRepo) UpdateClassification(ctx context.Context, id uuid.UUID, c *models.Classification) error {
	return nil
}

type fakeSummaryRepo struct{ store *fakeStore }

func (r *fakeSummaryRepo) Exists(ctx context.Context, customerID uuid.UUID, period models.PeriodKey) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.summaries[r.store.summaryKey(customerID, period)]
	return ok, nil
}

func (r *fakeSummaryRepo) ListRecent(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.Summary, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []*models.Summary
	for _, s := range r.store.summaries {
		if s.CustomerID == customerID {
			result = append(result, s)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeSummaryRepo) CreateWithArchival(ctx context.Context, summary *models.Summary, conversationIDs []uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := r.store.summaryKey(summary.CustomerID, summary.PeriodKey)
	if _, ok := r.store.summaries[key]; ok {
		return errs.Conflict("summary already exists for period")
	}
	r.store.summaries[key] = summary
	for _, id := range conversationIDs {
		if conv, ok := r.store.conversations[id]; ok {
			conv.State = models.ConversationStateArchived
		}
	}
	return nil
}

var (
	_ database.CustomerRepositoryInterface     = (*fakeCustomerRepo)(nil)
	_ database.ConversationRepositoryInterface = (*fakeConversationRepo)(nil)
	_ database.SummaryRepositoryInterface      = (*fakeSummaryRepo)(nil)
)

type fakeProvider struct {
	mu             sync.Mutex
	summarizeCalls int
	summarizeErr   error
	failCustomer   string
	profile        *ai.ProfileResult
}

func (p *fakeProvider) Summarize(ctx context.Context, req *ai.SummaryRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summarizeCalls++
	if p.summarizeErr != nil {
		return "", p.summarizeErr
	}
	return "summary for " + string(req.PeriodKey), nil
}

func (p *fakeProvider) GenerateProfile(ctx context.Context, req *ai.ProfileRequest) (*ai.ProfileResult, error) {
	if p.profile != nil {
		return p.profile, nil
	}
	return &ai.ProfileResult{Summary: "generated profile"}, nil
}

func (p *fakeProvider) GenerateResponse(ctx context.Context, prompt string, userMessage string) (string, error) {
	return "", nil
}

func (p *fakeProvider) Classify(ctx context.Context, text string) (*models.Classification, error) {
	return nil, errors.New("not implemented")
}

var _ ai.Provider = (*fakeProvider)(nil)

type fakeScheduler struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (s *fakeScheduler) ScheduleProfileRefresh(ctx context.Context, tenantID, customerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, customerID)
	return s.err
}

type fakeLocker struct {
	acquired bool
	released bool
}

func (l *fakeLocker) Acquire(ctx context.Context, tenantID uuid.UUID) (func(), bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.released = true }, true, nil
}

func testPipeline(store *fakeStore, provider ai.Provider, scheduler ProfileRefreshScheduler, locker Locker) *Pipeline {
	return New(
		&fakeCustomerRepo{store: store},
		&fakeConversationRepo{store: store},
		&fakeSummaryRepo{store: store},
		provider,
		scheduler,
		locker,
		nil,
	)
}

func TestCutoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current   models.PeriodKey
		retention int
		want      models.PeriodKey
	}{
		{"2024-05", 2, "2024-04"},
		{"2024-05", 1, "2024-05"},
		{"2024-05", 3, "2024-03"},
		{"2024-01", 2, "2023-12"},
		{"2024-05", 0, "2024-05"},
	}
	for _, tt := range tests {
		if got := Cutoff(tt.current, tt.retention); got != tt.want {
			t.Errorf("Cutoff(%s, %d) = %s, want %s", tt.current, tt.retention, got, tt.want)
		}
	}
}

func TestRun_ArchivesOldPeriods(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New(), RetentionPeriods: 2}
	customer := store.addCustomer(tenant.ID)

	// Conversations in the five most recent periods. With retention 2,
	// the three oldest periods are archived and the two newest stay
	// current.
	current := models.CurrentPeriod()
	for offset := 4; offset >= 0; offset-- {
		store.addConversation(customer.ID, current.AddPeriods(-offset), 2)
	}

	scheduler := &fakeScheduler{}
	pipeline := testPipeline(store, &fakeProvider{}, scheduler, nil)

	report, err := pipeline.Run(context.Background(), tenant, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.GroupsArchived != 3 {
		t.Errorf("GroupsArchived = %d, want 3", report.GroupsArchived)
	}
	if len(store.summaries) != 3 {
		t.Errorf("summaries = %d, want 3", len(store.summaries))
	}

	archived, currentCount := 0, 0
	for _, conv := range store.conversations {
		switch conv.State {
		case models.ConversationStateArchived:
			archived++
		case models.ConversationStateCurrent:
			currentCount++
		}
	}
	if archived != 3 || currentCount != 2 {
		t.Errorf("archived = %d current = %d, want 3 and 2", archived, currentCount)
	}

	if len(scheduler.calls) != 1 || scheduler.calls[0] != customer.ID {
		t.Errorf("scheduler calls = %v, want one refresh for %s", scheduler.calls, customer.ID)
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New(), RetentionPeriods: 2}
	customer := store.addCustomer(tenant.ID)
	store.addConversation(customer.ID, models.CurrentPeriod().AddPeriods(-3), 2)

	provider := &fakeProvider{}
	pipeline := testPipeline(store, provider, nil, nil)

	first, err := pipeline.Run(context.Background(), tenant, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.GroupsArchived != 1 {
		t.Fatalf("first run GroupsArchived = %d, want 1", first.GroupsArchived)
	}

	second, err := pipeline.Run(context.Background(), tenant, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.GroupsArchived != 0 {
		t.Errorf("second run GroupsArchived = %d, want 0", second.GroupsArchived)
	}
	if len(store.summaries) != 1 {
		t.Errorf("summaries = %d, want exactly 1 after re-run", len(store.summaries))
	}
	if provider.summarizeCalls != 1 {
		t.Errorf("summarize calls = %d, want 1", provider.summarizeCalls)
	}
}

func TestRun_CustomerErrorsAreIsolated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New(), RetentionPeriods: 2}
	old := models.CurrentPeriod().AddPeriods(-3)

	broken := store.addCustomer(tenant.ID)
	store.addConversation(broken.ID, old, 1)
	healthy := store.addCustomer(tenant.ID)
	store.addConversation(healthy.ID, old, 1)

	// Fail summarization for the first customer processed, succeed after.
	provider := &flakyProvider{failFirst: true}
	pipeline := testPipeline(store, provider, nil, nil)

	report, err := pipeline.Run(context.Background(), tenant, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.CustomersProcessed != 2 {
		t.Errorf("CustomersProcessed = %d, want 2", report.CustomersProcessed)
	}
	if report.CustomersErrored != 1 {
		t.Errorf("CustomersErrored = %d, want 1", report.CustomersErrored)
	}
	if report.GroupsArchived != 1 {
		t.Errorf("GroupsArchived = %d, want 1", report.GroupsArchived)
	}
}

// flakyProvider fails the first Summarize call only.
type flakyProvider struct {
	mu        sync.Mutex
	failFirst bool
	calls     int
}

func (p *flakyProvider) Summarize(ctx context.Context, req *ai.SummaryRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failFirst && p.calls == 1 {
		return "", errors.New("summarization unavailable")
	}
	return "summary", nil
}

func (p *flakyProvider) GenerateProfile(ctx context.Context, req *ai.ProfileRequest) (*ai.ProfileResult, error) {
	return &ai.ProfileResult{Summary: "profile"}, nil
}

func (p *flakyProvider) GenerateResponse(ctx context.Context, prompt string, userMessage string) (string, error) {
	return "", nil
}

func (p *flakyProvider) Classify(ctx context.Context, text string) (*models.Classification, error) {
	return nil, errors.New("not implemented")
}

func TestRun_LockConflict(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New(), RetentionPeriods: 2}
	pipeline := testPipeline(store, &fakeProvider{}, nil, &fakeLocker{acquired: false})

	_, err := pipeline.Run(context.Background(), tenant, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errs.IsConflict(err) {
		t.Errorf("expected ConflictError, got %v", err)
	}
}

func TestRun_ReleasesLock(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New(), RetentionPeriods: 2}
	locker := &fakeLocker{acquired: true}
	pipeline := testPipeline(store, &fakeProvider{}, nil, locker)

	if _, err := pipeline.Run(context.Background(), tenant, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !locker.released {
		t.Error("lock was not released")
	}
}

func TestRun_CancelledBetweenCustomers(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New(), RetentionPeriods: 2}
	old := models.CurrentPeriod().AddPeriods(-3)
	for i := 0; i < 3; i++ {
		c := store.addCustomer(tenant.ID)
		store.addConversation(c.ID, old, 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := testPipeline(store, &fakeProvider{}, nil, nil)
	report, err := pipeline.Run(ctx, tenant, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.GroupsArchived != 0 {
		t.Errorf("GroupsArchived = %d, want 0 after immediate cancellation", report.GroupsArchived)
	}
	// No group may be left half-archived.
	for _, conv := range store.conversations {
		if conv.State != models.ConversationStateCurrent {
			t.Errorf("conversation %s state = %s, want current", conv.ID, conv.State)
		}
	}
}

func TestRefreshProfile(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New()}
	customer := store.addCustomer(tenant.ID)
	store.summaries[store.summaryKey(customer.ID, "2024-01")] = &models.Summary{
		CustomerID: customer.ID,
		PeriodKey:  "2024-01",
		Text:       "old history",
	}

	provider := &fakeProvider{profile: &ai.ProfileResult{
		Summary:  "frequent buyer",
		Tags:     []string{"vip"},
		Insights: []string{"asks about shipping often"},
	}}
	pipeline := testPipeline(store, provider, nil, nil)

	if err := pipeline.RefreshProfile(context.Background(), tenant, customer.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if customer.ProfileSummary != "frequent buyer" {
		t.Errorf("ProfileSummary = %q, want %q", customer.ProfileSummary, "frequent buyer")
	}
	if store.profileCalls != 1 {
		t.Errorf("profile updates = %d, want 1", store.profileCalls)
	}
}

func TestRefreshProfile_NoSummariesIsNoop(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	tenant := &models.Tenant{ID: uuid.New()}
	customer := store.addCustomer(tenant.ID)

	pipeline := testPipeline(store, &fakeProvider{}, nil, nil)
	if err := pipeline.RefreshProfile(context.Background(), tenant, customer.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.profileCalls != 0 {
		t.Errorf("profile updates = %d, want 0", store.profileCalls)
	}
}
