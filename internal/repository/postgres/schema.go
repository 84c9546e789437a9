package postgres

import (
	"context"
)

const tripRecordsSchema = `
	CREATE TABLE IF NOT EXISTS trip_records (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL,
		recommendation_id   TEXT NOT NULL,
		trip_id             TEXT,
		phase               TEXT NOT NULL,
		origin_lat          DOUBLE PRECISION NOT NULL,
		origin_lng          DOUBLE PRECISION NOT NULL,
		origin_address      TEXT NOT NULL DEFAULT '',
		origin_source       TEXT NOT NULL DEFAULT '',
		destination_lat     DOUBLE PRECISION NOT NULL,
		destination_lng     DOUBLE PRECISION NOT NULL,
		destination_address TEXT NOT NULL DEFAULT '',
		destination_source  TEXT NOT NULL DEFAULT '',
		reward_source       TEXT,
		reward_points       INTEGER NOT NULL DEFAULT 0,
		demo                BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL,
		departed_at         TIMESTAMPTZ,
		ended_at            TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_trip_records_user_created ON trip_records (user_id, created_at DESC);
`

// EnsureSchema creates the trip journal table if it does not exist.
func EnsureSchema(ctx context.Context, q Querier) error {
	_, err := q.ExecContext(ctx, tripRecordsSchema)
	return err
}
