package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/geocode"
	"commute/internal/metrics"
	"commute/internal/monitor"
	"commute/internal/position"
	internalRedis "commute/internal/redis"
	"commute/internal/repository"
)

// Notifier is the presenter handed to every monitor, plus a hook for
// discarded sessions.
type Notifier interface {
	monitor.RewardPresenter
	SessionClosed(sessionID string)
}

// TripSessionConfig holds per-trip settings.
type TripSessionConfig struct {
	Monitor     monitor.Config
	Reported    position.ReportedConfig
	Demo        position.DemoConfig
	DemoEnabled bool
	LockTTL     time.Duration
	// CleanupTimeout bounds store calls made from background callbacks.
	CleanupTimeout time.Duration
}

// DefaultTripSessionConfig returns the package defaults.
func DefaultTripSessionConfig() TripSessionConfig {
	return TripSessionConfig{
		Monitor:        monitor.DefaultConfig(),
		Reported:       position.DefaultReportedConfig(),
		Demo:           position.DefaultDemoConfig(),
		DemoEnabled:    true,
		LockTTL:        3 * time.Hour,
		CleanupTimeout: 5 * time.Second,
	}
}

// tripSession is one live trip context.
type tripSession struct {
	id       string
	userID   string
	demo     bool
	monitor  *monitor.Monitor
	reported *position.ReportedSource
}

// TripSessionService owns the live trip contexts. Each context holds one
// monitor and its position source; the context is discarded when the user
// acknowledges a finished trip.
type TripSessionService struct {
	resolver  geocode.Resolver
	trips     monitor.TripService
	notifier  Notifier
	records   repository.TripRecordRepository
	store     internalRedis.SessionStoreInterface
	positions internalRedis.PositionStoreInterface
	locks     internalRedis.LockStoreInterface
	cfg       TripSessionConfig
	log       *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*tripSession
}

// NewTripSessionService creates a new TripSessionService.
func NewTripSessionService(
	resolver geocode.Resolver,
	trips monitor.TripService,
	notifier Notifier,
	records repository.TripRecordRepository,
	store internalRedis.SessionStoreInterface,
	positions internalRedis.PositionStoreInterface,
	locks internalRedis.LockStoreInterface,
	cfg TripSessionConfig,
	log *zap.Logger,
) *TripSessionService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultTripSessionConfig().LockTTL
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = DefaultTripSessionConfig().CleanupTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TripSessionService{
		resolver:  resolver,
		trips:     trips,
		notifier:  notifier,
		records:   records,
		store:     store,
		positions: positions,
		locks:     locks,
		cfg:       cfg,
		log:       log,
		sessions:  make(map[string]*tripSession),
	}
}

// CreateTripRequest contains the parameters for creating a trip context.
type CreateTripRequest struct {
	UserID             string
	Recommendation     domain.Recommendation
	OriginAddress      string
	DestinationAddress string
	// Origin and Destination skip geocoding when set.
	Origin      *domain.Coordinate
	Destination *domain.Coordinate
	Demo        bool
}

// CreateTrip validates the request, resolves both endpoints and registers a
// new trip context in the Waiting phase.
func (s *TripSessionService) CreateTrip(ctx context.Context, req CreateTripRequest) (monitor.Snapshot, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return monitor.Snapshot{}, ErrInvalidUserID
	}
	if strings.TrimSpace(req.Recommendation.ID) == "" {
		return monitor.Snapshot{}, ErrInvalidRecommendation
	}
	if err := validateEndpoint(req.OriginAddress, req.Origin); err != nil {
		return monitor.Snapshot{}, fmt.Errorf("origin: %w", err)
	}
	if err := validateEndpoint(req.DestinationAddress, req.Destination); err != nil {
		return monitor.Snapshot{}, fmt.Errorf("destination: %w", err)
	}
	if req.Demo && !s.cfg.DemoEnabled {
		return monitor.Snapshot{}, ErrDemoDisabled
	}

	sessionID := uuid.New().String()

	acquired, err := s.locks.AcquireUserTripLock(ctx, req.UserID, sessionID, s.cfg.LockTTL)
	if err != nil {
		return monitor.Snapshot{}, fmt.Errorf("failed to acquire trip lock: %w", err)
	}
	if !acquired {
		return monitor.Snapshot{}, ErrActiveTripExists
	}

	snap, err := s.createLocked(ctx, sessionID, req)
	if err != nil {
		if rerr := s.locks.ReleaseUserTripLock(context.WithoutCancel(ctx), req.UserID, sessionID); rerr != nil {
			s.log.Error("failed to release trip lock", zap.String("user_id", req.UserID), zap.Error(rerr))
		}
		return monitor.Snapshot{}, err
	}
	return snap, nil
}

func (s *TripSessionService) createLocked(ctx context.Context, sessionID string, req CreateTripRequest) (monitor.Snapshot, error) {
	origin, err := s.resolve(ctx, req.OriginAddress, req.Origin)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	destination, err := s.resolve(ctx, req.DestinationAddress, req.Destination)
	if err != nil {
		return monitor.Snapshot{}, err
	}

	draft := &domain.TripDraft{
		Origin:           req.OriginAddress,
		Destination:      req.DestinationAddress,
		RecommendationID: req.Recommendation.ID,
		SavedAt:          time.Now(),
	}
	if err := s.store.SaveDraft(ctx, req.UserID, draft); err != nil {
		s.log.Warn("failed to save trip draft", zap.String("user_id", req.UserID), zap.Error(err))
	}

	record := &domain.TripRecord{
		ID:               sessionID,
		UserID:           req.UserID,
		RecommendationID: req.Recommendation.ID,
		Phase:            domain.PhaseWaiting,
		Origin:           origin,
		Destination:      destination,
		Demo:             req.Demo,
		CreatedAt:        time.Now(),
	}
	if err := s.records.Create(ctx, record); err != nil {
		return monitor.Snapshot{}, fmt.Errorf("failed to journal trip: %w", err)
	}

	log := s.log.With(zap.String("user_id", req.UserID))
	session := &tripSession{id: sessionID, userID: req.UserID, demo: req.Demo}

	var source monitor.PositionSource
	if req.Demo {
		source = position.NewDemoSource(origin.Coordinate, destination.Coordinate, req.Recommendation.Polyline, s.cfg.Demo, log)
	} else {
		session.reported = position.NewReportedSource(s.cfg.Reported, log)
		source = session.reported
	}

	trip := monitor.Trip{
		SessionID:      sessionID,
		UserID:         req.UserID,
		Recommendation: req.Recommendation,
		Origin:         &origin,
		Destination:    &destination,
	}
	session.monitor = monitor.New(trip, source, s.trips, &sessionPresenter{svc: s, session: session}, s.cfg.Monitor, log)

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()
	metrics.ActiveTripsGauge.Inc()

	s.log.Info("trip created",
		zap.String("session_id", sessionID),
		zap.String("user_id", req.UserID),
		zap.String("recommendation_id", req.Recommendation.ID),
		zap.Bool("demo", req.Demo),
	)
	return session.monitor.Snapshot(), nil
}

func validateEndpoint(address string, coord *domain.Coordinate) error {
	if coord != nil {
		if !coord.Valid() {
			return ErrInvalidLocation
		}
		return nil
	}
	if strings.TrimSpace(address) == "" {
		return ErrInvalidAddress
	}
	return nil
}

func (s *TripSessionService) resolve(ctx context.Context, address string, coord *domain.Coordinate) (domain.NamedLocation, error) {
	if coord != nil {
		return domain.NamedLocation{
			Coordinate: *coord,
			Address:    strings.TrimSpace(address),
			Source:     domain.LocationSourceProvided,
		}, nil
	}
	loc, err := s.resolver.Resolve(ctx, strings.TrimSpace(address))
	if err != nil {
		return domain.NamedLocation{}, fmt.Errorf("failed to resolve %q: %w", address, err)
	}
	return loc, nil
}

// BeginMonitoring moves a Waiting trip to Monitoring.
func (s *TripSessionService) BeginMonitoring(ctx context.Context, sessionID string) (monitor.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	if err := session.monitor.BeginMonitoring(ctx); err != nil {
		return session.monitor.Snapshot(), err
	}
	return session.monitor.Snapshot(), nil
}

// RestartWatch reopens the position watch after a stream error.
func (s *TripSessionService) RestartWatch(ctx context.Context, sessionID string) (monitor.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	if err := session.monitor.RestartWatch(ctx); err != nil {
		return session.monitor.Snapshot(), err
	}
	return session.monitor.Snapshot(), nil
}

// Cancel abandons a trip in any non-terminal phase.
func (s *TripSessionService) Cancel(ctx context.Context, sessionID string) (monitor.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return monitor.Snapshot{}, err
	}
	if err := session.monitor.Cancel(ctx); err != nil {
		return session.monitor.Snapshot(), err
	}
	return session.monitor.Snapshot(), nil
}

// Snapshot returns the live trip context, or rebuilds a read-only view from
// the journal when the context is no longer held in memory.
func (s *TripSessionService) Snapshot(ctx context.Context, sessionID string) (monitor.Snapshot, error) {
	if session, err := s.get(sessionID); err == nil {
		return session.monitor.Snapshot(), nil
	}

	record, err := s.records.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return monitor.Snapshot{}, ErrSessionNotFound
		}
		return monitor.Snapshot{}, err
	}

	snap := snapshotFromRecord(record)
	if fix, err := s.positions.LastPosition(ctx, sessionID); err != nil {
		s.log.Warn("failed to load last position", zap.String("session_id", sessionID), zap.Error(err))
	} else if fix != nil {
		snap.LastKnownPosition = fix
	}
	return snap, nil
}

// Acknowledge discards a finished trip context. A completed trip can only be
// acknowledged once its reward is ready.
func (s *TripSessionService) Acknowledge(ctx context.Context, sessionID string) (monitor.Snapshot, error) {
	session, err := s.get(sessionID)
	if err != nil {
		return monitor.Snapshot{}, err
	}

	snap := session.monitor.Snapshot()
	if !snap.Phase.Terminal() {
		return snap, ErrTripNotCompleted
	}
	if snap.Phase == domain.PhaseCompleted && snap.Reward == nil {
		return snap, ErrRewardPending
	}

	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return monitor.Snapshot{}, ErrSessionNotFound
	}

	metrics.ActiveTripsGauge.Dec()
	if session.reported != nil {
		session.reported.Close()
	}
	s.notifier.SessionClosed(sessionID)
	s.log.Info("trip acknowledged", zap.String("session_id", sessionID), zap.String("phase", string(snap.Phase)))
	return snap, nil
}

// ReportPosition feeds a client fix into a live trip. Fixes reported after
// the trip ended are ignored.
func (s *TripSessionService) ReportPosition(ctx context.Context, sessionID string, fix domain.Fix) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	if session.demo {
		return ErrDemoSession
	}
	if !fix.Valid() {
		return ErrInvalidLocation
	}
	if session.monitor.Phase().Terminal() {
		return nil
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	// Stored before the monitor sees the fix so terminal cleanup always wins.
	if err := s.positions.SavePosition(ctx, sessionID, fix); err != nil {
		s.log.Warn("failed to store position", zap.String("session_id", sessionID), zap.Error(err))
	}

	if err := session.reported.Report(fix); err != nil {
		if errors.Is(err, position.ErrInvalidFix) {
			return ErrInvalidLocation
		}
		return err
	}
	metrics.PositionUpdatesTotal.WithLabelValues("reported").Inc()
	return nil
}

// Geolocation error codes reported by clients.
const (
	PositionErrorPermissionDenied = "PERMISSION_DENIED"
	PositionErrorUnavailable      = "POSITION_UNAVAILABLE"
	PositionErrorTimeout          = "TIMEOUT"
)

// ReportPositionError forwards a client geolocation failure. Permission
// errors end the watch; unavailable and timeout errors are transient.
func (s *TripSessionService) ReportPositionError(ctx context.Context, sessionID, code, message string) error {
	session, err := s.get(sessionID)
	if err != nil {
		return err
	}
	if session.demo {
		return ErrDemoSession
	}

	if message == "" {
		message = strings.ToLower(code)
	}
	switch strings.ToUpper(code) {
	case PositionErrorUnavailable, PositionErrorTimeout:
		session.reported.Fail(fmt.Errorf("%s: %w", message, monitor.ErrTransientPosition))
	default:
		session.reported.Fail(errors.New(message))
	}
	return nil
}

// History returns the user's journaled trips, newest first.
func (s *TripSessionService) History(ctx context.Context, userID string, limit int) ([]*domain.TripRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	return s.records.ListByUser(ctx, userID, limit)
}

// Wait blocks until all remote calls of a live trip have finished.
func (s *TripSessionService) Wait(sessionID string) {
	if session, err := s.get(sessionID); err == nil {
		session.monitor.Wait()
	}
}

// Close stops every reported position source. Live trips stay journaled.
func (s *TripSessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.reported != nil {
			session.reported.Close()
		}
	}
}

func (s *TripSessionService) get(sessionID string) (*tripSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// finish releases per-user resources once a trip reaches a terminal phase.
func (s *TripSessionService) finish(session *tripSession) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CleanupTimeout)
	defer cancel()

	if err := s.locks.ReleaseUserTripLock(ctx, session.userID, session.id); err != nil {
		s.log.Error("failed to release trip lock", zap.String("session_id", session.id), zap.Error(err))
	}
	if err := s.positions.RemovePosition(ctx, session.id); err != nil {
		s.log.Warn("failed to remove stored position", zap.String("session_id", session.id), zap.Error(err))
	}
}

// sessionPresenter forwards monitor notifications and runs terminal cleanup.
type sessionPresenter struct {
	svc     *TripSessionService
	session *tripSession
}

func (p *sessionPresenter) PhaseChanged(ctx context.Context, snap monitor.Snapshot) {
	p.svc.notifier.PhaseChanged(ctx, snap)
	if snap.Phase.Terminal() {
		p.svc.finish(p.session)
	}
}

func (p *sessionPresenter) Warn(ctx context.Context, snap monitor.Snapshot, err error) {
	p.svc.notifier.Warn(ctx, snap, err)
}

func (p *sessionPresenter) RewardReady(ctx context.Context, snap monitor.Snapshot, reward domain.Reward) {
	p.svc.notifier.RewardReady(ctx, snap, reward)
}

func snapshotFromRecord(record *domain.TripRecord) monitor.Snapshot {
	origin := record.Origin
	destination := record.Destination
	snap := monitor.Snapshot{
		SessionID:        record.ID,
		UserID:           record.UserID,
		RecommendationID: record.RecommendationID,
		Phase:            record.Phase,
		Origin:           &origin,
		Destination:      &destination,
		TripID:           record.TripID,
		DepartedAt:       record.DepartedAt,
		EndedAt:          record.EndedAt,
	}
	if record.RewardSource != "" {
		snap.Reward = &domain.Reward{Source: record.RewardSource, Points: record.RewardPoints}
	}
	return snap
}
