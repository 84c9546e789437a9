package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"commute/internal/domain"
	"commute/internal/events"
	"commute/internal/metrics"
	"commute/internal/monitor"
	"commute/internal/repository"
)

// NotificationType represents the type of notification pushed to clients.
type NotificationType string

const (
	NotificationPhaseChanged NotificationType = "PHASE_CHANGED"
	NotificationWarning      NotificationType = "WARNING"
	NotificationRewardReady  NotificationType = "REWARD_READY"
	// NotificationSnapshot is sent once when a client subscribes.
	NotificationSnapshot NotificationType = "SNAPSHOT"
	// NotificationError answers a client message that could not be applied.
	NotificationError NotificationType = "ERROR"
)

// Notification is the message pushed to a session's websocket.
type Notification struct {
	Type      NotificationType `json:"type"`
	SessionID string           `json:"session_id"`
	Snapshot  monitor.Snapshot `json:"snapshot"`
	Reward    *domain.Reward   `json:"reward,omitempty"`
	Warning   string           `json:"warning,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Broadcaster delivers notifications to connected clients.
type Broadcaster interface {
	SendTo(sessionID string, msg any) error
	CloseSession(sessionID string)
}

// NotificationService fans monitor notifications out to the journal, the
// event broker, metrics and websocket clients. It implements
// monitor.RewardPresenter.
type NotificationService struct {
	records   repository.TripRecordRepository
	publisher events.Publisher
	clients   Broadcaster
	log       *zap.Logger
}

// NewNotificationService creates a new NotificationService. A nil publisher
// drops events and a nil broadcaster skips websocket delivery.
func NewNotificationService(records repository.TripRecordRepository, publisher events.Publisher, clients Broadcaster, log *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationService{
		records:   records,
		publisher: publisher,
		clients:   clients,
		log:       log,
	}
}

// PhaseChanged records the transition and notifies subscribers.
func (s *NotificationService) PhaseChanged(ctx context.Context, snap monitor.Snapshot) {
	metrics.PhaseTransitionsTotal.WithLabelValues(string(snap.Phase)).Inc()
	s.log.Info("trip phase changed",
		zap.String("session_id", snap.SessionID),
		zap.String("phase", string(snap.Phase)),
	)

	s.journal(ctx, snap)
	s.publish(ctx, events.RoutingKeyForPhase(snap.Phase), snap, nil)
	s.push(Notification{
		Type:      NotificationPhaseChanged,
		SessionID: snap.SessionID,
		Snapshot:  snap,
		CreatedAt: time.Now(),
	})
}

// Warn reports a non-blocking problem to the user.
func (s *NotificationService) Warn(ctx context.Context, snap monitor.Snapshot, err error) {
	metrics.TripWarningsTotal.WithLabelValues(warningKind(err)).Inc()
	s.log.Warn("trip warning",
		zap.String("session_id", snap.SessionID),
		zap.String("phase", string(snap.Phase)),
		zap.Error(err),
	)

	s.push(Notification{
		Type:      NotificationWarning,
		SessionID: snap.SessionID,
		Snapshot:  snap,
		Warning:   err.Error(),
		CreatedAt: time.Now(),
	})
}

// RewardReady journals the reward and notifies subscribers.
func (s *NotificationService) RewardReady(ctx context.Context, snap monitor.Snapshot, reward domain.Reward) {
	metrics.TripCompletionsTotal.WithLabelValues(string(reward.Source)).Inc()
	s.log.Info("trip reward ready",
		zap.String("session_id", snap.SessionID),
		zap.String("trip_id", snap.TripID),
		zap.String("reward_source", string(reward.Source)),
		zap.Int("points", reward.Points),
	)

	s.journal(ctx, snap)
	s.publish(ctx, events.RoutingKeyReward, snap, &reward)
	s.push(Notification{
		Type:      NotificationRewardReady,
		SessionID: snap.SessionID,
		Snapshot:  snap,
		Reward:    &reward,
		CreatedAt: time.Now(),
	})
}

// SessionClosed drops the websocket of a discarded session.
func (s *NotificationService) SessionClosed(sessionID string) {
	if s.clients != nil {
		s.clients.CloseSession(sessionID)
	}
}

func (s *NotificationService) journal(ctx context.Context, snap monitor.Snapshot) {
	if s.records == nil {
		return
	}
	record := recordFromSnapshot(snap)
	if err := s.records.Update(ctx, record); err != nil {
		s.log.Error("failed to update trip record", zap.String("session_id", snap.SessionID), zap.Error(err))
	}
}

func (s *NotificationService) publish(ctx context.Context, routingKey string, snap monitor.Snapshot, reward *domain.Reward) {
	event := events.NewTripEvent(snap.SessionID, snap.UserID, snap.RecommendationID, snap.Phase)
	event.TripID = snap.TripID
	event.Reward = reward
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.log.Warn("failed to publish trip event",
			zap.String("session_id", snap.SessionID),
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) push(n Notification) {
	if s.clients == nil {
		return
	}
	// No subscriber is the common case for background updates.
	_ = s.clients.SendTo(n.SessionID, n)
}

func warningKind(err error) string {
	switch {
	case errors.Is(err, monitor.ErrPositionStream):
		return "position_stream"
	case errors.Is(err, monitor.ErrRemoteCallFailed):
		return "remote_call"
	default:
		return "other"
	}
}

// recordFromSnapshot builds the mutable part of a journal row.
func recordFromSnapshot(snap monitor.Snapshot) *domain.TripRecord {
	record := &domain.TripRecord{
		ID:               snap.SessionID,
		UserID:           snap.UserID,
		RecommendationID: snap.RecommendationID,
		TripID:           snap.TripID,
		Phase:            snap.Phase,
		DepartedAt:       snap.DepartedAt,
		EndedAt:          snap.EndedAt,
	}
	if snap.Origin != nil {
		record.Origin = *snap.Origin
	}
	if snap.Destination != nil {
		record.Destination = *snap.Destination
	}
	if snap.Reward != nil {
		record.RewardSource = snap.Reward.Source
		record.RewardPoints = snap.Reward.Points
	}
	return record
}

var _ monitor.RewardPresenter = (*NotificationService)(nil)
