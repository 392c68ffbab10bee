package rider

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("rider not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetRider(ctx context.Context, id uuid.UUID) (Rider, error) {
	var rd Rider
	err := r.db.GetContext(ctx, &rd, getRiderQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Rider{}, ErrNotFound
	}
	return rd, err
}

const getRiderQuery = `SELECT * FROM riders WHERE id = $1`

func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (Rider, error) {
	var rd Rider
	err := r.db.GetContext(ctx, &rd, getByExternalIDQuery, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return Rider{}, ErrNotFound
	}
	return rd, err
}

const getByExternalIDQuery = `SELECT * FROM riders WHERE external_id = $1`

// Upsert creates or refreshes a rider from verified identity-provider
// details, keyed by the provider subject.
func (r *Repository) Upsert(ctx context.Context, externalID, name, email string) (Rider, error) {
	var rd Rider
	err := r.db.GetContext(ctx, &rd, upsertRiderQuery, uuid.New(), externalID, name, email)
	return rd, err
}

const upsertRiderQuery = `
INSERT INTO riders (id, external_id, name, email, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), now())
ON CONFLICT (external_id) DO UPDATE
SET name = COALESCE(NULLIF(EXCLUDED.name, ''), riders.name),
    email = COALESCE(NULLIF(EXCLUDED.email, ''), riders.email)
RETURNING *
`

// UnpaidCompletedCount counts the rider's completed sessions whose
// payment is still outstanding. At DuesBlockThreshold the rider is
// blocked from booking.
func (r *Repository) UnpaidCompletedCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, unpaidCompletedCountQuery, id)
	return count, err
}

const unpaidCompletedCountQuery = `
SELECT count(*) FROM rental_sessions s
JOIN payments p ON p.session_id = s.id
WHERE s.rider_id = $1
  AND s.status = 'COMPLETED'
  AND p.status = 'PENDING'
`
