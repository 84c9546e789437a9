package domain

import "time"

// TripRecord is the journal row kept for every trip attempt.
type TripRecord struct {
	ID               string
	UserID           string
	RecommendationID string
	TripID           string // Backend trip id, empty until start succeeds.
	Phase            Phase
	Origin           NamedLocation
	Destination      NamedLocation
	RewardSource     RewardSource
	RewardPoints     int
	Demo             bool
	CreatedAt        time.Time
	DepartedAt       time.Time
	EndedAt          time.Time
}
