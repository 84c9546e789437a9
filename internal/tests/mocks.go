package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"commute/internal/domain"
	"commute/internal/events"
	"commute/internal/geocode"
	"commute/internal/monitor"
	"commute/internal/repository"
	"commute/internal/service"
)

// ──────────────────────────────────────────────
// MOCK TRIP RECORD REPOSITORY
// ──────────────────────────────────────────────

// MockTripRecordRepository is a mock implementation of TripRecordRepository.
type MockTripRecordRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.TripRecord

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockTripRecordRepository creates a new mock trip record repository.
func NewMockTripRecordRepository() *MockTripRecordRepository {
	return &MockTripRecordRepository{
		records: make(map[string]*domain.TripRecord),
	}
}

// AddRecord adds a record to the mock repository.
func (m *MockTripRecordRepository) AddRecord(record *domain.TripRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
}

func (m *MockTripRecordRepository) Create(ctx context.Context, record *domain.TripRecord) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *record
	m.records[record.ID] = &copy
	return nil
}

func (m *MockTripRecordRepository) GetByID(ctx context.Context, id string) (*domain.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *record
	return &copy, nil
}

func (m *MockTripRecordRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.TripRecord, 0)
	for _, r := range m.records {
		if r.UserID == userID {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockTripRecordRepository) Update(ctx context.Context, record *domain.TripRecord) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[record.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// Only the mutable columns change, as in the SQL implementation.
	existing.TripID = record.TripID
	existing.Phase = record.Phase
	existing.RewardSource = record.RewardSource
	existing.RewardPoints = record.RewardPoints
	existing.DepartedAt = record.DepartedAt
	existing.EndedAt = record.EndedAt
	return nil
}

// GetRecord returns a record for test assertions.
func (m *MockTripRecordRepository) GetRecord(id string) *domain.TripRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil
	}
	copy := *record
	return &copy
}

// ──────────────────────────────────────────────
// MOCK SESSION STORE
// ──────────────────────────────────────────────

// MockSessionStore is a mock implementation of SessionStore.
type MockSessionStore struct {
	mu        sync.Mutex
	profiles  map[string]*domain.UserProfile
	favorites map[string]map[string]domain.FavoriteRoute
	drafts    map[string]*domain.TripDraft

	// Counters
	SaveDraftCallCount int32

	// Error injection
	SaveDraftError error
}

// NewMockSessionStore creates a new mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		profiles:  make(map[string]*domain.UserProfile),
		favorites: make(map[string]map[string]domain.FavoriteRoute),
		drafts:    make(map[string]*domain.TripDraft),
	}
}

func (m *MockSessionStore) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	copy := *p
	return &copy, nil
}

func (m *MockSessionStore) SaveProfile(ctx context.Context, profile *domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *profile
	m.profiles[profile.UserID] = &copy
	return nil
}

func (m *MockSessionStore) ListFavorites(ctx context.Context, userID string) ([]domain.FavoriteRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.FavoriteRoute, 0, len(m.favorites[userID]))
	for _, f := range m.favorites[userID] {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MockSessionStore) AddFavorite(ctx context.Context, userID string, fav domain.FavoriteRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.favorites[userID] == nil {
		m.favorites[userID] = make(map[string]domain.FavoriteRoute)
	}
	m.favorites[userID][fav.ID] = fav
	return nil
}

func (m *MockSessionStore) RemoveFavorite(ctx context.Context, userID, favoriteID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.favorites[userID][favoriteID]; !ok {
		return false, nil
	}
	delete(m.favorites[userID], favoriteID)
	return true, nil
}

func (m *MockSessionStore) GetDraft(ctx context.Context, userID string) (*domain.TripDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[userID]
	if !ok {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (m *MockSessionStore) SaveDraft(ctx context.Context, userID string, draft *domain.TripDraft) error {
	atomic.AddInt32(&m.SaveDraftCallCount, 1)
	if m.SaveDraftError != nil {
		return m.SaveDraftError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *draft
	m.drafts[userID] = &copy
	return nil
}

func (m *MockSessionStore) ClearDraft(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, userID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK POSITION STORE
// ──────────────────────────────────────────────

// MockPositionStore is a mock implementation of PositionStore.
type MockPositionStore struct {
	mu        sync.RWMutex
	positions map[string]domain.Fix

	// Counters
	SavePositionCallCount int32

	// Error injection
	SavePositionError error
}

// NewMockPositionStore creates a new mock position store.
func NewMockPositionStore() *MockPositionStore {
	return &MockPositionStore{
		positions: make(map[string]domain.Fix),
	}
}

// SetPosition stores a fix directly (for test setup).
func (m *MockPositionStore) SetPosition(sessionID string, fix domain.Fix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[sessionID] = fix
}

func (m *MockPositionStore) SavePosition(ctx context.Context, sessionID string, fix domain.Fix) error {
	atomic.AddInt32(&m.SavePositionCallCount, 1)
	if m.SavePositionError != nil {
		return m.SavePositionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[sessionID] = fix
	return nil
}

func (m *MockPositionStore) LastPosition(ctx context.Context, sessionID string) (*domain.Fix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fix, ok := m.positions[sessionID]
	if !ok {
		return nil, nil
	}
	return &fix, nil
}

func (m *MockPositionStore) RemovePosition(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, sessionID)
	return nil
}

// HasPosition checks if a session position exists.
func (m *MockPositionStore) HasPosition(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.positions[sessionID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]lockEntry

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

type lockEntry struct {
	holder string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]lockEntry),
	}
}

func (m *MockLockStore) AcquireUserTripLock(ctx context.Context, userID, sessionID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:user-trip:" + userID
	if entry, exists := m.locks[key]; exists {
		if time.Now().Before(entry.expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = lockEntry{holder: sessionID, expiry: time.Now().Add(ttl)}
	return true, nil
}

func (m *MockLockStore) ReleaseUserTripLock(ctx context.Context, userID, sessionID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:user-trip:" + userID
	if entry, ok := m.locks[key]; ok && entry.holder == sessionID {
		delete(m.locks, key)
	}
	return nil
}

// IsLocked checks if a user is locked (for test assertions).
func (m *MockLockStore) IsLocked(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, exists := m.locks["lock:user-trip:"+userID]
	return exists && time.Now().Before(entry.expiry)
}

// ──────────────────────────────────────────────
// MOCK TRIP SERVICE (rewards backend)
// ──────────────────────────────────────────────

// MockTripService is a mock rewards backend.
type MockTripService struct {
	mu sync.Mutex

	// Control behavior
	StartError  error
	ArriveError error
	TripID      string
	Points      int

	// Counters
	StartCallCount  int32
	ArriveCallCount int32
}

// NewMockTripService creates a new mock trip service.
func NewMockTripService() *MockTripService {
	return &MockTripService{TripID: "trip-1", Points: 120}
}

func (m *MockTripService) Start(ctx context.Context, recommendationID string) (monitor.StartResult, error) {
	atomic.AddInt32(&m.StartCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartError != nil {
		return monitor.StartResult{}, m.StartError
	}
	return monitor.StartResult{TripID: m.TripID}, nil
}

func (m *MockTripService) Arrive(ctx context.Context, tripID string) (monitor.ArriveResult, error) {
	atomic.AddInt32(&m.ArriveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ArriveError != nil {
		return monitor.ArriveResult{}, m.ArriveError
	}
	return monitor.ArriveResult{Points: m.Points, Payload: []byte(`{"points":120}`)}, nil
}

// SetFailure configures the remote calls to fail.
func (m *MockTripService) SetFailure(startErr, arriveErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartError = startErr
	m.ArriveError = arriveErr
}

// ──────────────────────────────────────────────
// MOCK BROADCASTER
// ──────────────────────────────────────────────

// MockBroadcaster records pushed notifications per session.
type MockBroadcaster struct {
	mu       sync.Mutex
	messages map[string][]service.Notification
	closed   map[string]bool
}

// NewMockBroadcaster creates a new mock broadcaster.
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{
		messages: make(map[string][]service.Notification),
		closed:   make(map[string]bool),
	}
}

func (m *MockBroadcaster) SendTo(sessionID string, msg any) error {
	n, ok := msg.(service.Notification)
	if !ok {
		return errors.New("mock: unexpected message type")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[sessionID] = append(m.messages[sessionID], n)
	return nil
}

func (m *MockBroadcaster) CloseSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[sessionID] = true
}

// Types returns the notification types pushed to a session, in order.
func (m *MockBroadcaster) Types(sessionID string) []service.NotificationType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]service.NotificationType, 0, len(m.messages[sessionID]))
	for _, n := range m.messages[sessionID] {
		types = append(types, n.Type)
	}
	return types
}

// Closed reports whether CloseSession was called for the session.
func (m *MockBroadcaster) Closed(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed[sessionID]
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published trip events.
type MockPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []events.TripEvent

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event events.TripEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.keys = append(m.keys, routingKey)
	m.events = append(m.events, event)
	return nil
}

// RoutingKeys returns the routing keys published so far, in order.
func (m *MockPublisher) RoutingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// Events returns the events published so far, in order.
func (m *MockPublisher) Events() []events.TripEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.TripEvent(nil), m.events...)
}

// ──────────────────────────────────────────────
// MOCK RESOLVER
// ──────────────────────────────────────────────

// NewLandmarkOnlyResolver resolves through the landmark table and the
// default centre, as when the geocoder is unreachable.
func NewLandmarkOnlyResolver() geocode.Resolver {
	failing := geocode.ResolverFunc(func(ctx context.Context, address string) (domain.NamedLocation, error) {
		return domain.NamedLocation{}, geocode.ErrResolutionFailed
	})
	return geocode.NewFallbackResolver(failing, geocode.NewLandmarks(geocode.DefaultLandmarks()), geocode.SeoulCityHall, nil)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockRemote       = errors.New("mock: remote unavailable")
)
