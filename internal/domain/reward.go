package domain

import (
	"encoding/json"
	"time"
)

// RewardSource tells confirmed rewards apart from locally synthesized ones.
type RewardSource string

const (
	// RewardConfirmed is returned by the rewards backend on arrival.
	RewardConfirmed RewardSource = "CONFIRMED"
	// RewardSynthesized is built from the recommendation estimate when
	// arrival could not be confirmed.
	RewardSynthesized RewardSource = "SYNTHESIZED"
)

// Reward is the outcome shown to the user when a trip completes.
type Reward struct {
	Source  RewardSource    `json:"source"`
	Points  int             `json:"points"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// Confirmed reports whether the backend acknowledged the arrival.
func (r Reward) Confirmed() bool {
	return r.Source == RewardConfirmed
}

// Recommendation is the server-computed departure option the user committed to.
type Recommendation struct {
	ID              string    `json:"id"`
	DepartAt        time.Time `json:"depart_at,omitempty"`
	EstimatedReward int       `json:"estimated_reward"`
	Polyline        string    `json:"polyline,omitempty"`
}
