package repository

import (
	"context"

	"commute/internal/domain"
)

// TripRecordRepository defines the persistence operations for the trip journal.
type TripRecordRepository interface {
	// Create persists a new trip record.
	Create(ctx context.Context, record *domain.TripRecord) error

	// GetByID retrieves a trip record by session ID.
	GetByID(ctx context.Context, id string) (*domain.TripRecord, error)

	// ListByUser retrieves the most recent trip records of a user, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.TripRecord, error)

	// Update updates an existing trip record.
	Update(ctx context.Context, record *domain.TripRecord) error
}
