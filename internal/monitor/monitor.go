package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/geo"
)

// Config holds geofence thresholds and timeouts.
type Config struct {
	DepartureThresholdMeters float64
	ArrivalThresholdMeters   float64
	PositionTimeout          time.Duration
	RemoteTimeout            time.Duration

	// Distance defaults to geo.DistanceMeters.
	Distance DistanceFunc
}

// DefaultConfig returns the standard thresholds: 50 m to depart, 100 m to arrive.
func DefaultConfig() Config {
	return Config{
		DepartureThresholdMeters: 50,
		ArrivalThresholdMeters:   100,
		PositionTimeout:          10 * time.Second,
		RemoteTimeout:            15 * time.Second,
		Distance:                 geo.DistanceMeters,
	}
}

// Trip identifies the trip attempt a monitor owns.
type Trip struct {
	SessionID      string
	UserID         string
	Recommendation domain.Recommendation
	Origin         *domain.NamedLocation
	Destination    *domain.NamedLocation
}

// Snapshot is a point-in-time copy of the trip context.
type Snapshot struct {
	SessionID         string                `json:"session_id"`
	UserID            string                `json:"user_id"`
	RecommendationID  string                `json:"recommendation_id"`
	Phase             domain.Phase          `json:"phase"`
	Origin            *domain.NamedLocation `json:"origin,omitempty"`
	Destination       *domain.NamedLocation `json:"destination,omitempty"`
	TripID            string                `json:"trip_id,omitempty"`
	LastKnownPosition *domain.Fix           `json:"last_known_position,omitempty"`
	Reward            *domain.Reward        `json:"reward,omitempty"`
	Watching          bool                  `json:"watching"`
	StartFailed       bool                  `json:"start_failed"`
	DepartedAt        time.Time             `json:"departed_at,omitempty"`
	EndedAt           time.Time             `json:"ended_at,omitempty"`
}

// Monitor is the trip state machine. It watches positions, detects departure
// from the origin and arrival at the destination, and calls the trip service
// once at each of those transitions.
type Monitor struct {
	trip      Trip
	cfg       Config
	source    PositionSource
	trips     TripService
	presenter RewardPresenter
	log       *zap.Logger
	now       func() time.Time

	mu          sync.Mutex
	phase       domain.Phase
	beginning   bool
	gen         uint64 // Incremented whenever a watch is opened or abandoned.
	sub         Subscription
	streamEnded bool
	lastFix     *domain.Fix
	tripID      string
	startFailed bool
	reward      *domain.Reward
	departedAt  time.Time
	endedAt     time.Time

	// One-shot latches for the two remote transitions.
	started   bool
	arrived   bool
	startDone chan struct{}

	// Presenter calls are serialized by notifyMu. seq stamps every snapshot
	// handed to the presenter (guarded by mu); delivered is the highest stamp
	// passed on so far (guarded by notifyMu).
	notifyMu  sync.Mutex
	seq       uint64
	delivered uint64

	wg sync.WaitGroup
}

// stamped is a snapshot taken for the presenter, ordered by seq.
type stamped struct {
	snap Snapshot
	seq  uint64
}

// New creates a Monitor in the Waiting phase.
func New(trip Trip, source PositionSource, trips TripService, presenter RewardPresenter, cfg Config, log *zap.Logger) *Monitor {
	defaults := DefaultConfig()
	if cfg.DepartureThresholdMeters <= 0 {
		cfg.DepartureThresholdMeters = defaults.DepartureThresholdMeters
	}
	if cfg.ArrivalThresholdMeters <= 0 {
		cfg.ArrivalThresholdMeters = defaults.ArrivalThresholdMeters
	}
	if cfg.PositionTimeout <= 0 {
		cfg.PositionTimeout = defaults.PositionTimeout
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = defaults.RemoteTimeout
	}
	if cfg.Distance == nil {
		cfg.Distance = defaults.Distance
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Monitor{
		trip:      trip,
		cfg:       cfg,
		source:    source,
		trips:     trips,
		presenter: presenter,
		log:       log.With(zap.String("session_id", trip.SessionID)),
		now:       time.Now,
		phase:     domain.PhaseWaiting,
	}
}

// Snapshot returns a copy of the current trip context.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Phase returns the current phase.
func (m *Monitor) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Wait blocks until all dispatched remote calls have finished and their
// results have been recorded.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// BeginMonitoring moves Waiting to Monitoring. It takes a seed fix and opens
// the position watch. A failed seed fix leaves the monitor in Waiting.
func (m *Monitor) BeginMonitoring(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != domain.PhaseWaiting || m.beginning {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("%w: begin from %s", ErrInvalidPhase, phase)
	}
	if !m.locationsReady() {
		m.mu.Unlock()
		return ErrLocationsNotReady
	}
	m.beginning = true
	m.mu.Unlock()

	seedCtx, cancel := context.WithTimeout(ctx, m.cfg.PositionTimeout)
	seed, err := m.source.CurrentPosition(seedCtx)
	cancel()

	m.mu.Lock()
	m.beginning = false
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("seed position unavailable", zap.Error(err))
		if errors.Is(err, ErrPositionUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}
	if m.phase != domain.PhaseWaiting {
		// Cancelled while the seed fix was pending.
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("%w: begin from %s", ErrInvalidPhase, phase)
	}
	if seed.Timestamp.IsZero() {
		seed.Timestamp = m.now()
	}
	m.lastFix = &seed
	m.phase = domain.PhaseMonitoring
	gen := m.openGenerationLocked()
	st := m.stampLocked()
	m.mu.Unlock()

	m.log.Info("monitoring started",
		zap.Float64("seed_lat", seed.Lat),
		zap.Float64("seed_lng", seed.Lng),
	)
	m.notifyPhase(ctx, st)

	if err := m.openWatch(ctx, gen); err != nil {
		return err
	}
	return nil
}

// RestartWatch reopens the position watch after it ended with a stream error.
func (m *Monitor) RestartWatch(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != domain.PhaseMonitoring && m.phase != domain.PhaseTraveling {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("%w: restart watch from %s", ErrInvalidPhase, phase)
	}
	if m.sub != nil && !m.streamEnded {
		m.mu.Unlock()
		return ErrWatchActive
	}
	gen := m.openGenerationLocked()
	m.mu.Unlock()

	m.log.Info("restarting position watch")
	return m.openWatch(ctx, gen)
}

// Cancel moves any non-terminal phase to Cancelled. The subscription is
// released before Cancel returns and no remote call is dispatched afterwards.
// Results of calls already in flight are discarded.
func (m *Monitor) Cancel(ctx context.Context) error {
	m.mu.Lock()
	if m.phase.Terminal() {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrInvalidPhase, phase)
	}
	from := m.phase
	m.phase = domain.PhaseCancelled
	m.endedAt = m.now()
	m.gen++
	m.releaseLocked()
	st := m.stampLocked()
	m.mu.Unlock()

	m.log.Info("trip cancelled", zap.String("from", string(from)))
	m.notifyPhase(ctx, st)
	return nil
}

func (m *Monitor) locationsReady() bool {
	return m.trip.Origin != nil && m.trip.Destination != nil &&
		m.trip.Origin.Valid() && m.trip.Destination.Valid()
}

func (m *Monitor) openGenerationLocked() uint64 {
	m.gen++
	m.streamEnded = false
	return m.gen
}

// releaseLocked cancels the held subscription, if any.
func (m *Monitor) releaseLocked() {
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}
}

func (m *Monitor) openWatch(ctx context.Context, gen uint64) error {
	sub, err := m.source.Watch(
		func(fix domain.Fix) { m.handleFix(gen, fix) },
		func(err error) { m.handleStreamError(gen, err) },
	)
	if err != nil {
		m.log.Warn("failed to open position watch", zap.Error(err))
		m.mu.Lock()
		stale := gen != m.gen
		if !stale {
			m.streamEnded = true
		}
		st := m.stampLocked()
		m.mu.Unlock()

		werr := fmt.Errorf("%w: %v", ErrPositionStream, err)
		if !stale {
			m.notifyWarn(ctx, st, werr)
		}
		return werr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.streamEnded || m.phase.Terminal() {
		// Superseded, ended, or finished while Watch was starting.
		sub.Cancel()
		return nil
	}
	m.sub = sub
	return nil
}

// handleFix evaluates one position update. Updates are serialized by m.mu.
func (m *Monitor) handleFix(gen uint64, fix domain.Fix) {
	var (
		notify      []stamped
		launchStart bool
		launchArr   bool
		startCh     chan struct{}
		startDone   chan struct{}
	)

	m.mu.Lock()
	if gen != m.gen || (m.phase != domain.PhaseMonitoring && m.phase != domain.PhaseTraveling) {
		m.mu.Unlock()
		return
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = m.now()
	}
	if m.lastFix != nil && fix.Timestamp.Before(m.lastFix.Timestamp) {
		m.mu.Unlock()
		m.log.Debug("dropping out-of-order fix", zap.Time("timestamp", fix.Timestamp))
		return
	}
	m.lastFix = &fix

	if m.phase == domain.PhaseMonitoring && !m.started {
		d := m.cfg.Distance(m.trip.Origin.Coordinate, fix.Coordinate)
		if d > m.cfg.DepartureThresholdMeters {
			m.started = true
			m.phase = domain.PhaseTraveling
			m.departedAt = fix.Timestamp
			m.startDone = make(chan struct{})
			startCh = m.startDone
			m.wg.Add(1)
			launchStart = true
			notify = append(notify, m.stampLocked())
			m.log.Info("departure detected", zap.Float64("distance_m", d))
		}
	}

	if m.phase == domain.PhaseTraveling && !m.arrived {
		d := m.cfg.Distance(m.trip.Destination.Coordinate, fix.Coordinate)
		if d <= m.cfg.ArrivalThresholdMeters {
			m.arrived = true
			m.phase = domain.PhaseCompleted
			m.endedAt = fix.Timestamp
			m.releaseLocked()
			m.gen++
			m.wg.Add(1)
			launchArr = true
			startDone = m.startDone
			notify = append(notify, m.stampLocked())
			m.log.Info("arrival detected", zap.Float64("distance_m", d))
		}
	}
	m.mu.Unlock()

	ctx := context.Background()
	for _, st := range notify {
		m.notifyPhase(ctx, st)
	}
	if launchStart {
		go m.runStart(startCh)
	}
	if launchArr {
		go m.runArrive(startDone)
	}
}

func (m *Monitor) handleStreamError(gen uint64, err error) {
	if errors.Is(err, ErrTransientPosition) {
		m.log.Debug("transient position error", zap.Error(err))
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.phase.Terminal() {
		m.mu.Unlock()
		return
	}
	m.streamEnded = true
	m.releaseLocked()
	st := m.stampLocked()
	m.mu.Unlock()

	m.log.Warn("position stream ended", zap.Error(err))
	m.notifyWarn(context.Background(), st, fmt.Errorf("%w: %v", ErrPositionStream, err))
}

func (m *Monitor) runStart(done chan struct{}) {
	defer m.wg.Done()
	defer close(done)

	m.mu.Lock()
	cancelled := m.phase == domain.PhaseCancelled
	m.mu.Unlock()
	if cancelled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RemoteTimeout)
	res, err := m.trips.Start(ctx, m.trip.Recommendation.ID)
	cancel()
	if err == nil && res.TripID == "" {
		err = errors.New("empty trip id")
	}

	m.mu.Lock()
	if m.phase == domain.PhaseCancelled {
		m.mu.Unlock()
		m.log.Info("discarding start result for cancelled trip")
		return
	}
	if err != nil {
		m.startFailed = true
	} else {
		m.tripID = res.TripID
	}
	st := m.stampLocked()
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("trip start failed", zap.Error(err))
		m.notifyWarn(context.Background(), st, wrapRemote("start", err))
		return
	}
	m.log.Info("trip started", zap.String("trip_id", res.TripID))
}

func (m *Monitor) runArrive(startDone <-chan struct{}) {
	defer m.wg.Done()

	if startDone != nil {
		<-startDone
	}

	m.mu.Lock()
	tripID := m.tripID
	m.mu.Unlock()

	var reward domain.Reward
	if tripID == "" {
		reward = m.synthesize("trip was not confirmed by the server")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RemoteTimeout)
		res, err := m.trips.Arrive(ctx, tripID)
		cancel()
		if err != nil {
			m.log.Warn("trip arrive failed", zap.String("trip_id", tripID), zap.Error(err))
			reward = m.synthesize(wrapRemote("arrive", err).Error())
		} else {
			reward = domain.Reward{
				Source:  domain.RewardConfirmed,
				Points:  res.Points,
				Payload: res.Payload,
			}
		}
	}

	m.mu.Lock()
	m.reward = &reward
	st := m.stampLocked()
	m.mu.Unlock()

	m.log.Info("reward ready",
		zap.String("source", string(reward.Source)),
		zap.Int("points", reward.Points),
	)

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.markDeliveredLocked(st.seq)
	m.presenter.RewardReady(context.Background(), st.snap, reward)
}

// stampLocked takes a snapshot for the presenter. Callers hold m.mu.
func (m *Monitor) stampLocked() stamped {
	m.seq++
	return stamped{snap: m.snapshotLocked(), seq: m.seq}
}

// notifyPhase passes a phase change to the presenter unless a later snapshot
// has already been delivered. Must not be called with m.mu held.
func (m *Monitor) notifyPhase(ctx context.Context, st stamped) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if st.seq < m.delivered {
		m.log.Debug("dropping superseded phase notification", zap.String("phase", string(st.snap.Phase)))
		return
	}
	m.delivered = st.seq
	m.presenter.PhaseChanged(ctx, st.snap)
}

// notifyWarn always delivers the warning. Warnings do not advance the
// delivered stamp, so they never suppress a pending phase change.
func (m *Monitor) notifyWarn(ctx context.Context, st stamped, err error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.presenter.Warn(ctx, st.snap, err)
}

func (m *Monitor) markDeliveredLocked(seq uint64) {
	if seq > m.delivered {
		m.delivered = seq
	}
}

func (m *Monitor) synthesize(reason string) domain.Reward {
	return domain.Reward{
		Source: domain.RewardSynthesized,
		Points: m.trip.Recommendation.EstimatedReward,
		Reason: reason,
	}
}

func (m *Monitor) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:        m.trip.SessionID,
		UserID:           m.trip.UserID,
		RecommendationID: m.trip.Recommendation.ID,
		Phase:            m.phase,
		TripID:           m.tripID,
		Watching:         m.sub != nil && !m.streamEnded,
		StartFailed:      m.startFailed,
		DepartedAt:       m.departedAt,
		EndedAt:          m.endedAt,
	}
	if m.trip.Origin != nil {
		origin := *m.trip.Origin
		snap.Origin = &origin
	}
	if m.trip.Destination != nil {
		dest := *m.trip.Destination
		snap.Destination = &dest
	}
	if m.lastFix != nil {
		fix := *m.lastFix
		snap.LastKnownPosition = &fix
	}
	if m.reward != nil {
		reward := *m.reward
		snap.Reward = &reward
	}
	return snap
}

func wrapRemote(op string, err error) error {
	if errors.Is(err, ErrRemoteCallFailed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrRemoteCallFailed, err)
}
