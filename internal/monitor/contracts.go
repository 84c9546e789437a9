package monitor

import (
	"context"
	"encoding/json"

	"commute/internal/domain"
)

// PositionSource provides device positions.
type PositionSource interface {
	// CurrentPosition returns a single fix or an error wrapping
	// ErrPositionUnavailable.
	CurrentPosition(ctx context.Context) (domain.Fix, error)

	// Watch starts continuous delivery. onUpdate is called in non-decreasing
	// timestamp order from a single logical stream. onError is called once
	// with a fatal error, after which the subscription has ended. Errors
	// wrapping ErrTransientPosition may also be passed to onError and do not
	// end the subscription.
	Watch(onUpdate func(domain.Fix), onError func(error)) (Subscription, error)
}

// Subscription is a handle on an active watch.
type Subscription interface {
	// Cancel stops delivery. It is idempotent, never blocks on callbacks and
	// never invokes them.
	Cancel()
}

// StartResult is returned by TripService.Start.
type StartResult struct {
	TripID string `json:"trip_id"`
}

// ArriveResult is returned by TripService.Arrive.
type ArriveResult struct {
	Points  int             `json:"points"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TripService is the rewards backend.
type TripService interface {
	Start(ctx context.Context, recommendationID string) (StartResult, error)
	Arrive(ctx context.Context, tripID string) (ArriveResult, error)
}

// RewardPresenter receives monitor notifications. Calls are made without
// holding monitor locks and may come from background goroutines.
type RewardPresenter interface {
	PhaseChanged(ctx context.Context, snap Snapshot)
	Warn(ctx context.Context, snap Snapshot, err error)
	RewardReady(ctx context.Context, snap Snapshot, reward domain.Reward)
}

// DistanceFunc measures meters between an anchor and a position.
type DistanceFunc func(anchor, position domain.Coordinate) float64
