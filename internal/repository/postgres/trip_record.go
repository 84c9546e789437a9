package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"commute/internal/domain"
	"commute/internal/repository"
)

const tripRecordColumns = `id, user_id, recommendation_id, trip_id, phase,
	origin_lat, origin_lng, origin_address, origin_source,
	destination_lat, destination_lng, destination_address, destination_source,
	reward_source, reward_points, demo, created_at, departed_at, ended_at`

// TripRecordRepository is a PostgreSQL implementation of repository.TripRecordRepository.
type TripRecordRepository struct {
	q Querier
}

// NewTripRecordRepository creates a new PostgreSQL trip record repository.
func NewTripRecordRepository(db *sql.DB) *TripRecordRepository {
	return &TripRecordRepository{q: db}
}

// NewTripRecordRepositoryWithTx creates a trip record repository using a transaction.
func NewTripRecordRepositoryWithTx(tx *sql.Tx) *TripRecordRepository {
	return &TripRecordRepository{q: tx}
}

// Create persists a new trip record.
func (r *TripRecordRepository) Create(ctx context.Context, rec *domain.TripRecord) error {
	query := `INSERT INTO trip_records (` + tripRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.q.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.RecommendationID,
		nullString(rec.TripID),
		rec.Phase,
		rec.Origin.Lat,
		rec.Origin.Lng,
		rec.Origin.Address,
		rec.Origin.Source,
		rec.Destination.Lat,
		rec.Destination.Lng,
		rec.Destination.Address,
		rec.Destination.Source,
		nullString(string(rec.RewardSource)),
		rec.RewardPoints,
		rec.Demo,
		rec.CreatedAt,
		nullTime(rec.DepartedAt),
		nullTime(rec.EndedAt),
	)
	return err
}

// GetByID retrieves a trip record by session ID.
func (r *TripRecordRepository) GetByID(ctx context.Context, id string) (*domain.TripRecord, error) {
	query := `SELECT ` + tripRecordColumns + ` FROM trip_records WHERE id = $1`

	rec, err := scanTripRecord(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByUser retrieves the most recent trip records of a user, newest first.
func (r *TripRecordRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.TripRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query := `SELECT ` + tripRecordColumns + `
		FROM trip_records WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TripRecord
	for rows.Next() {
		rec, err := scanTripRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Update updates an existing trip record.
func (r *TripRecordRepository) Update(ctx context.Context, rec *domain.TripRecord) error {
	query := `
		UPDATE trip_records
		SET trip_id = $1, phase = $2, reward_source = $3, reward_points = $4, departed_at = $5, ended_at = $6
		WHERE id = $7
	`

	result, err := r.q.ExecContext(ctx, query,
		nullString(rec.TripID),
		rec.Phase,
		nullString(string(rec.RewardSource)),
		rec.RewardPoints,
		nullTime(rec.DepartedAt),
		nullTime(rec.EndedAt),
		rec.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTripRecord(row rowScanner) (*domain.TripRecord, error) {
	var rec domain.TripRecord
	var tripID, rewardSource sql.NullString
	var departedAt, endedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.RecommendationID,
		&tripID,
		&rec.Phase,
		&rec.Origin.Lat,
		&rec.Origin.Lng,
		&rec.Origin.Address,
		&rec.Origin.Source,
		&rec.Destination.Lat,
		&rec.Destination.Lng,
		&rec.Destination.Address,
		&rec.Destination.Source,
		&rewardSource,
		&rec.RewardPoints,
		&rec.Demo,
		&rec.CreatedAt,
		&departedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	if tripID.Valid {
		rec.TripID = tripID.String
	}
	if rewardSource.Valid {
		rec.RewardSource = domain.RewardSource(rewardSource.String)
	}
	if departedAt.Valid {
		rec.DepartedAt = departedAt.Time
	}
	if endedAt.Valid {
		rec.EndedAt = endedAt.Time
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ repository.TripRecordRepository = (*TripRecordRepository)(nil)
