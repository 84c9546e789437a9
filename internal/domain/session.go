package domain

import "time"

// UserProfile is the cached profile of the signed-in user.
type UserProfile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	HomeAddress string    `json:"home_address,omitempty"`
	WorkAddress string    `json:"work_address,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FavoriteRoute is a saved origin/destination pair.
type FavoriteRoute struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

// TripDraft holds the last trip form the user submitted.
type TripDraft struct {
	Origin           string    `json:"origin"`
	Destination      string    `json:"destination"`
	RecommendationID string    `json:"recommendation_id"`
	SavedAt          time.Time `json:"saved_at"`
}
