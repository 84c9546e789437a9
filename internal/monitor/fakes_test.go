package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"commute/internal/domain"
)

// ──────────────────────────────────────────────
// FAKE POSITION SOURCE
// ──────────────────────────────────────────────

type fakeSubscription struct {
	src       *fakeSource
	cancelled atomic.Bool
}

func (s *fakeSubscription) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		atomic.AddInt32(&s.src.CancelCallCount, 1)
	}
}

// fakeSource delivers fixes synchronously on the calling goroutine.
type fakeSource struct {
	mu       sync.Mutex
	seed     domain.Fix
	onUpdate func(domain.Fix)
	onError  func(error)
	sub      *fakeSubscription
	clock    time.Time

	// Deliver even after Cancel, to exercise the monitor's own guard.
	IgnoreCancel bool

	WatchCallCount  int32
	CancelCallCount int32

	SeedError  error
	WatchError error
	SeedBlock  chan struct{}
}

func newFakeSource(seed domain.Coordinate) *fakeSource {
	return &fakeSource{
		seed:  domain.Fix{Coordinate: seed},
		clock: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func (s *fakeSource) CurrentPosition(ctx context.Context) (domain.Fix, error) {
	if s.SeedBlock != nil {
		select {
		case <-s.SeedBlock:
		case <-ctx.Done():
			return domain.Fix{}, ErrPositionUnavailable
		}
	}
	if s.SeedError != nil {
		return domain.Fix{}, s.SeedError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fix := s.seed
	fix.Timestamp = s.tickLocked()
	return fix, nil
}

func (s *fakeSource) Watch(onUpdate func(domain.Fix), onError func(error)) (Subscription, error) {
	atomic.AddInt32(&s.WatchCallCount, 1)
	if s.WatchError != nil {
		return nil, s.WatchError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = onUpdate
	s.onError = onError
	s.sub = &fakeSubscription{src: s}
	return s.sub, nil
}

func (s *fakeSource) tickLocked() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Emit delivers a fix at the next clock tick. It reports whether the fix
// was handed to the subscriber.
func (s *fakeSource) Emit(c domain.Coordinate) bool {
	s.mu.Lock()
	fix := domain.Fix{Coordinate: c, AccuracyMeters: 5, Timestamp: s.tickLocked()}
	return s.deliverLocked(fix)
}

// EmitAt delivers a fix with an explicit timestamp.
func (s *fakeSource) EmitAt(c domain.Coordinate, ts time.Time) bool {
	s.mu.Lock()
	return s.deliverLocked(domain.Fix{Coordinate: c, Timestamp: ts})
}

func (s *fakeSource) deliverLocked(fix domain.Fix) bool {
	fn := s.onUpdate
	live := s.sub != nil && (!s.sub.cancelled.Load() || s.IgnoreCancel)
	s.mu.Unlock()
	if fn == nil || !live {
		return false
	}
	fn(fix)
	return true
}

// Fail reports an error on the current watch.
func (s *fakeSource) Fail(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *fakeSource) Clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// ──────────────────────────────────────────────
// FAKE TRIP SERVICE
// ──────────────────────────────────────────────

type fakeTripService struct {
	StartCallCount  int32
	ArriveCallCount int32

	StartError  error
	ArriveError error
	TripID      string
	Points      int

	// When set, Start blocks until the channel is closed.
	StartGate chan struct{}

	mu            sync.Mutex
	startRecIDs   []string
	arriveTripIDs []string
}

func newFakeTripService() *fakeTripService {
	return &fakeTripService{TripID: "trip-1", Points: 120}
}

func (f *fakeTripService) Start(ctx context.Context, recommendationID string) (StartResult, error) {
	atomic.AddInt32(&f.StartCallCount, 1)
	f.mu.Lock()
	f.startRecIDs = append(f.startRecIDs, recommendationID)
	f.mu.Unlock()
	if f.StartGate != nil {
		<-f.StartGate
	}
	if f.StartError != nil {
		return StartResult{}, f.StartError
	}
	return StartResult{TripID: f.TripID}, nil
}

func (f *fakeTripService) Arrive(ctx context.Context, tripID string) (ArriveResult, error) {
	atomic.AddInt32(&f.ArriveCallCount, 1)
	f.mu.Lock()
	f.arriveTripIDs = append(f.arriveTripIDs, tripID)
	f.mu.Unlock()
	if f.ArriveError != nil {
		return ArriveResult{}, f.ArriveError
	}
	return ArriveResult{Points: f.Points, Payload: []byte(`{"points":120,"store":"partner-1"}`)}, nil
}

func (f *fakeTripService) Starts() int32  { return atomic.LoadInt32(&f.StartCallCount) }
func (f *fakeTripService) Arrives() int32 { return atomic.LoadInt32(&f.ArriveCallCount) }

func (f *fakeTripService) ArriveTripIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.arriveTripIDs...)
}

// ──────────────────────────────────────────────
// RECORDING PRESENTER
// ──────────────────────────────────────────────

type recordingPresenter struct {
	mu       sync.Mutex
	phases   []domain.Phase
	warnings []error
	rewards  []domain.Reward
}

func (p *recordingPresenter) PhaseChanged(ctx context.Context, snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, snap.Phase)
}

func (p *recordingPresenter) Warn(ctx context.Context, snap Snapshot, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings = append(p.warnings, err)
}

func (p *recordingPresenter) RewardReady(ctx context.Context, snap Snapshot, reward domain.Reward) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rewards = append(p.rewards, reward)
}

func (p *recordingPresenter) Phases() []domain.Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Phase(nil), p.phases...)
}

func (p *recordingPresenter) Warnings() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.warnings...)
}

func (p *recordingPresenter) Rewards() []domain.Reward {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Reward(nil), p.rewards...)
}

func (p *recordingPresenter) HasWarning(target error) bool {
	for _, w := range p.Warnings() {
		if errors.Is(w, target) {
			return true
		}
	}
	return false
}

// gatedPresenter holds PhaseChanged for one phase until released and
// records that phase only after the hold.
type gatedPresenter struct {
	recordingPresenter
	hold    domain.Phase
	entered chan struct{}
	release chan struct{}
}

func newGatedPresenter(hold domain.Phase) *gatedPresenter {
	return &gatedPresenter{
		hold:    hold,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *gatedPresenter) PhaseChanged(ctx context.Context, snap Snapshot) {
	if snap.Phase == p.hold {
		close(p.entered)
		<-p.release
	}
	p.recordingPresenter.PhaseChanged(ctx, snap)
}
