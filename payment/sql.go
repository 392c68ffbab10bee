package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("payment not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (Payment, error) {
	var p Payment
	err := r.db.GetContext(ctx, &p, getBySessionIDQuery, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

const getBySessionIDQuery = `SELECT * FROM payments WHERE session_id = $1`

// ListPendingByRider lists the rider's outstanding payments, oldest
// first, for checkout aggregation.
func (r *Repository) ListPendingByRider(ctx context.Context, riderID uuid.UUID) ([]Payment, error) {
	var payments []Payment
	err := r.db.SelectContext(ctx, &payments, listPendingByRiderQuery, riderID)
	return payments, err
}

const listPendingByRiderQuery = `
SELECT p.* FROM payments p
JOIN rental_sessions s ON s.id = p.session_id
WHERE s.rider_id = $1 AND p.status = 'PENDING'
ORDER BY p.created_at ASC
`

// MarkPaid transitions the identified payments from PENDING to PAID and
// returns how many rows actually moved. Already-settled payments are
// skipped, so replaying a gateway event is a no-op rather than an error.
func (r *Repository) MarkPaid(ctx context.Context, ids []uuid.UUID) (int64, error) {
	query, args, err := sqlx.In(markPaidQuery, ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markPaidQuery = `
UPDATE payments SET status = 'PAID', paid_at = now()
WHERE id IN (?) AND status = 'PENDING'
`

// MarkPaidForRider sweeps every PENDING payment on the rider's sessions
// to PAID. Fallback for gateway events that do not identify the exact
// payments they settled.
func (r *Repository) MarkPaidForRider(ctx context.Context, riderID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, markPaidForRiderQuery, riderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markPaidForRiderQuery = `
UPDATE payments SET status = 'PAID', paid_at = now()
WHERE status = 'PENDING'
  AND session_id IN (SELECT id FROM rental_sessions WHERE rider_id = $1)
`

// MarkFailed transitions the identified payments from PENDING to FAILED.
func (r *Repository) MarkFailed(ctx context.Context, ids []uuid.UUID) (int64, error) {
	query, args, err := sqlx.In(markFailedQuery, ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markFailedQuery = `
UPDATE payments SET status = 'FAILED'
WHERE id IN (?) AND status = 'PENDING'
`
