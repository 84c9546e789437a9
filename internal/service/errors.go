package service

import "errors"

var (
	// ErrSessionNotFound is returned when no live trip context exists for a session ID.
	ErrSessionNotFound = errors.New("trip session not found")

	// ErrActiveTripExists is returned when the user already has a live trip.
	ErrActiveTripExists = errors.New("user already has an active trip")

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidRecommendation is returned when the recommendation has no ID.
	ErrInvalidRecommendation = errors.New("invalid recommendation")

	// ErrInvalidAddress is returned when an address is blank and no coordinate was given.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidLocation is returned when location coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrTripNotCompleted is returned when acknowledging a trip that has not ended.
	ErrTripNotCompleted = errors.New("trip not completed")

	// ErrRewardPending is returned when acknowledging a completed trip whose reward is not ready yet.
	ErrRewardPending = errors.New("reward not ready")

	// ErrDemoDisabled is returned when a demo trip is requested but demo mode is off.
	ErrDemoDisabled = errors.New("demo mode disabled")

	// ErrDemoSession is returned when reporting positions to a demo trip.
	ErrDemoSession = errors.New("demo trips do not accept reported positions")

	// ErrInvalidFavorite is returned when a favorite route has no name or endpoints.
	ErrInvalidFavorite = errors.New("invalid favorite route")

	// ErrFavoriteNotFound is returned when removing a favorite route that does not exist.
	ErrFavoriteNotFound = errors.New("favorite route not found")
)
