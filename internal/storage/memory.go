package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/types"
)

// MemoryQRStore is an in-process QRStore for demo mode and tests
type MemoryQRStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.QRRecord
	bySlug  map[string]string
	seq     map[string]int64
	nextSeq int64
}

// NewMemoryQRStore creates an empty in-memory record store
func NewMemoryQRStore() *MemoryQRStore {
	return &MemoryQRStore{
		byID:   make(map[string]*models.QRRecord),
		bySlug: make(map[string]string),
		seq:    make(map[string]int64),
	}
}

// Create stores a copy of record
func (s *MemoryQRStore) Create(_ context.Context, record *models.QRRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.bySlug[record.Slug]; taken {
		return ErrDuplicateSlug
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if _, taken := s.byID[record.ID]; taken {
		return ErrDuplicateKey
	}

	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	s.nextSeq++
	s.byID[record.ID] = record.Clone()
	s.bySlug[record.Slug] = record.ID
	s.seq[record.ID] = s.nextSeq
	return nil
}

// GetBySlug returns the record for slug regardless of owner or active flag
func (s *MemoryQRStore) GetBySlug(_ context.Context, slug string) (*models.QRRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// GetByID returns the owner's record
func (s *MemoryQRStore) GetByID(_ context.Context, id, ownerID string) (*models.QRRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.owned(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// ListByOwner returns the owner's records newest first
func (s *MemoryQRStore) ListByOwner(_ context.Context, ownerID string) ([]*models.QRRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*models.QRRecord, 0)
	for _, record := range s.byID {
		if record.OwnerID == ownerID {
			records = append(records, record.Clone())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return s.seq[records[i].ID] > s.seq[records[j].ID]
	})
	return records, nil
}

// CountByOwner returns how many records the owner has
func (s *MemoryQRStore) CountByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.byID {
		if record.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// Update applies patch to the owner's record
func (s *MemoryQRStore) Update(_ context.Context, id, ownerID string, patch models.QRPatch) (*models.QRRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.owned(id, ownerID)
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Name != nil {
		record.Name = *patch.Name
	}
	if patch.DestinationConfig != nil {
		record.DestinationConfig = types.CloneDestinationConfig(patch.DestinationConfig)
	}
	if patch.IsActive != nil {
		record.IsActive = *patch.IsActive
	}
	record.UpdatedAt = time.Now().UTC()
	return record.Clone(), nil
}

// Delete removes the owner's record
func (s *MemoryQRStore) Delete(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.owned(id, ownerID)
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	delete(s.bySlug, record.Slug)
	delete(s.seq, id)
	return nil
}

// IncrementScanCount adds one under the write lock. Inactive records are not counted.
func (s *MemoryQRStore) IncrementScanCount(_ context.Context, slug string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.bySlug[slug]
	if !ok {
		return 0, ErrNotFound
	}
	record := s.byID[id]
	if !record.IsActive {
		return 0, ErrNotFound
	}
	record.ScanCount++
	return record.ScanCount, nil
}

// owned must be called with the lock held
func (s *MemoryQRStore) owned(id, ownerID string) (*models.QRRecord, bool) {
	record, ok := s.byID[id]
	if !ok || record.OwnerID != ownerID {
		return nil, false
	}
	return record, true
}

// MemoryEventLog is an in-process EventLog
type MemoryEventLog struct {
	mu     sync.RWMutex
	events []*models.Event
}

// NewMemoryEventLog creates an empty in-memory event log
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

// Append records an event
func (l *MemoryEventLog) Append(_ context.Context, event *models.Event) error {
	prepareEvent(event)
	cp := copyEvent(event)

	l.mu.Lock()
	l.events = append(l.events, cp)
	l.mu.Unlock()
	return nil
}

// copyEvent returns a copy that shares no metadata with event
func copyEvent(event *models.Event) *models.Event {
	cp := *event
	cp.Metadata = make(map[string]interface{}, len(event.Metadata))
	for k, v := range event.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

// ListByRecord returns up to limit events for a record, newest first
func (l *MemoryEventLog) ListByRecord(_ context.Context, qrCodeID string, limit int) ([]*models.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := make([]*models.Event, 0)
	for i := len(l.events) - 1; i >= 0; i-- {
		if limit > 0 && len(events) >= limit {
			break
		}
		if l.events[i].QRCodeID == qrCodeID {
			events = append(events, copyEvent(l.events[i]))
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

// MemoryUserPlanStore is an in-process UserPlanStore
type MemoryUserPlanStore struct {
	mu    sync.RWMutex
	plans map[string]*models.UserPlan
}

// NewMemoryUserPlanStore creates an empty in-memory plan store
func NewMemoryUserPlanStore() *MemoryUserPlanStore {
	return &MemoryUserPlanStore{plans: make(map[string]*models.UserPlan)}
}

// Get returns the owner's plan or ErrNotFound
func (s *MemoryUserPlanStore) Get(_ context.Context, userID string) (*models.UserPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *plan
	return &cp, nil
}

// GetByStripeCustomerID finds the plan linked to a Stripe customer
func (s *MemoryUserPlanStore) GetByStripeCustomerID(_ context.Context, customerID string) (*models.UserPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, plan := range s.plans {
		if plan.StripeCustomerID != nil && *plan.StripeCustomerID == customerID {
			cp := *plan
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Create stores a plan, returning ErrDuplicateKey if the owner already has one
func (s *MemoryUserPlanStore) Create(_ context.Context, plan *models.UserPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[plan.UserID]; exists {
		return ErrDuplicateKey
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	cp := *plan
	s.plans[plan.UserID] = &cp
	return nil
}

// Update applies the set fields of update
func (s *MemoryUserPlanStore) Update(_ context.Context, userID string, update models.UserPlanUpdate) (*models.UserPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[userID]
	if !ok {
		return nil, ErrNotFound
	}
	update.Apply(plan, time.Now().UTC())
	cp := *plan
	return &cp, nil
}

// MemoryUserStore is an in-process UserStore
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
}

// NewMemoryUserStore creates an empty in-memory user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

// Create stores a user, returning ErrEmailTaken for a registered email
func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, taken := s.byEmail[user.Email]; taken {
		return ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	s.byID[user.ID] = &cp
	s.byEmail[user.Email] = user.ID
	return nil
}

// GetByID retrieves a user by ID
func (s *MemoryUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// GetByEmail retrieves a user by email
func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

var (
	_ QRStore       = (*MemoryQRStore)(nil)
	_ QRStore       = (*QRRepository)(nil)
	_ EventLog      = (*MemoryEventLog)(nil)
	_ EventLog      = (*EventRepository)(nil)
	_ EventLog      = (*ClickHouseEventRepository)(nil)
	_ UserPlanStore = (*MemoryUserPlanStore)(nil)
	_ UserPlanStore = (*UserPlanRepository)(nil)
	_ UserStore     = (*MemoryUserStore)(nil)
	_ UserStore     = (*UserRepository)(nil)
)
