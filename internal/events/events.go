package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"commute/internal/domain"
)

// Routing keys on the trip events exchange.
const (
	RoutingKeyReward = "trip.reward"
	routingKeyPrefix = "trip."
)

// TripEvent is the message body published for trip lifecycle changes.
type TripEvent struct {
	EventID          string         `json:"event_id"`
	SessionID        string         `json:"session_id"`
	UserID           string         `json:"user_id"`
	RecommendationID string         `json:"recommendation_id"`
	Phase            domain.Phase   `json:"phase"`
	TripID           string         `json:"trip_id,omitempty"`
	Reward           *domain.Reward `json:"reward,omitempty"`
	OccurredAt       time.Time      `json:"occurred_at"`
}

// NewTripEvent stamps a fresh event id and time.
func NewTripEvent(sessionID, userID, recommendationID string, phase domain.Phase) TripEvent {
	return TripEvent{
		EventID:          uuid.New().String(),
		SessionID:        sessionID,
		UserID:           userID,
		RecommendationID: recommendationID,
		Phase:            phase,
		OccurredAt:       time.Now().UTC(),
	}
}

// RoutingKeyForPhase returns trip.<phase> in lower case, e.g. trip.traveling.
func RoutingKeyForPhase(phase domain.Phase) string {
	return routingKeyPrefix + strings.ToLower(string(phase))
}

// Publisher sends trip events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event TripEvent) error
}

// NopPublisher drops every event. Used when the broker is disabled.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, string, TripEvent) error { return nil }
