package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/campuscycle/rentalengine-backend/fare"
	"github.com/campuscycle/rentalengine-backend/payment"
	"github.com/campuscycle/rentalengine-backend/rider"
)

var (
	ErrNotFound            = errors.New("session not found")
	ErrRiderNotFound       = errors.New("rider not found")
	ErrActiveSessionExists = errors.New("rider already has an open session")
	ErrDuesBlocked         = errors.New("rider has too many unpaid sessions")
	ErrNoValidToken        = errors.New("no valid token for attendant and checkpoint")
	ErrInvalidTransition   = errors.New("session is not in the required status")
	ErrAttendantMismatch   = errors.New("attendant not assigned to the session checkpoint")
)

const (
	txTimeout = 5 * time.Second

	// pgUniqueViolation is raised by the partial unique index guarding
	// "one open session per rider" when two bookings race.
	pgUniqueViolation = "23505"
)

type Repository struct {
	db    *sqlx.DB
	rates *fare.Schedule
}

func NewRepository(db *sqlx.DB, rates *fare.Schedule) *Repository {
	return &Repository{
		db:    db,
		rates: rates,
	}
}

// Book creates a PENDING session for the rider, with the start fields
// taken from the token that proves presence at the checkpoint. The
// existence check, dues check, token check and insert are one
// transaction; the partial unique index backs the existence check so
// two concurrent bookings can never both commit.
func (r *Repository) Book(ctx context.Context, riderID, attendantID, checkpointID uuid.UUID, tokenValue string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	var riderExists bool
	err = tx.GetContext(ctx, &riderExists, riderExistsQuery, riderID)
	if err != nil {
		return Session{}, err
	}
	if !riderExists {
		return Session{}, ErrRiderNotFound
	}

	var openIDs []uuid.UUID
	err = tx.SelectContext(ctx, &openIDs, openSessionsForUpdateQuery, riderID)
	if err != nil {
		return Session{}, err
	}
	if len(openIDs) > 0 {
		return Session{}, ErrActiveSessionExists
	}

	var unpaid int
	err = tx.GetContext(ctx, &unpaid, unpaidCompletedQuery, riderID)
	if err != nil {
		return Session{}, err
	}
	if unpaid >= rider.DuesBlockThreshold {
		return Session{}, ErrDuesBlocked
	}

	var tokenID uuid.UUID
	err = tx.GetContext(ctx, &tokenID, validTokenQuery, tokenValue, attendantID, checkpointID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoValidToken
	}
	if err != nil {
		return Session{}, err
	}

	var s Session
	err = tx.GetContext(ctx, &s, insertSessionQuery, uuid.New(), riderID, checkpointID, attendantID, tokenID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Session{}, ErrActiveSessionExists
		}
		return Session{}, err
	}

	return s, tx.Commit()
}

const riderExistsQuery = `SELECT EXISTS (SELECT 1 FROM riders WHERE id = $1)`

const openSessionsForUpdateQuery = `
SELECT id FROM rental_sessions
WHERE rider_id = $1 AND status IN ('PENDING', 'ONGOING')
FOR UPDATE
`

const unpaidCompletedQuery = `
SELECT count(*) FROM rental_sessions s
JOIN payments p ON p.session_id = s.id
WHERE s.rider_id = $1
  AND s.status = 'COMPLETED'
  AND p.status = 'PENDING'
`

const validTokenQuery = `
SELECT id FROM auth_tokens
WHERE value = $1
  AND attendant_id = $2
  AND checkpoint_id = $3
  AND expires_at > now()
ORDER BY created_at DESC
LIMIT 1
`

const insertSessionQuery = `
INSERT INTO rental_sessions (id, rider_id, start_checkpoint_id, start_attendant_id, start_token_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, 'PENDING', now())
RETURNING *
`

// ConfirmStart moves a PENDING session to ONGOING and stamps its start
// time. Re-invoking after success fails with ErrInvalidTransition
// rather than silently re-stamping.
func (r *Repository) ConfirmStart(ctx context.Context, sessionID, attendantID uuid.UUID) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	var s Session
	err = tx.GetContext(ctx, &s, getSessionForUpdateQuery, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	if s.Status != StatusPending {
		return Session{}, ErrInvalidTransition
	}

	if err := r.checkAssignment(ctx, tx, attendantID, s.StartCheckpointID); err != nil {
		return Session{}, err
	}

	err = tx.GetContext(ctx, &s, startSessionQuery, sessionID)
	if err != nil {
		return Session{}, err
	}

	return s, tx.Commit()
}

const getSessionForUpdateQuery = `SELECT * FROM rental_sessions WHERE id = $1 FOR UPDATE`

const startSessionQuery = `
UPDATE rental_sessions SET start_time = now(), status = 'ONGOING'
WHERE id = $1
RETURNING *
`

// ConfirmEnd completes an ONGOING session: it validates the end token,
// prices the elapsed time, stamps the end fields and creates the
// PENDING payment. The session update and the payment insert commit
// together or not at all.
func (r *Repository) ConfirmEnd(ctx context.Context, sessionID, attendantID, checkpointID uuid.UUID, tokenValue string) (Session, payment.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Session{}, payment.Payment{}, err
	}
	defer tx.Rollback()

	var s Session
	err = tx.GetContext(ctx, &s, getSessionForUpdateQuery, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, payment.Payment{}, ErrNotFound
	}
	if err != nil {
		return Session{}, payment.Payment{}, err
	}

	if s.Status != StatusOngoing || !s.StartTime.Valid {
		return Session{}, payment.Payment{}, ErrInvalidTransition
	}

	var tokenID uuid.UUID
	err = tx.GetContext(ctx, &tokenID, validTokenQuery, tokenValue, attendantID, checkpointID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, payment.Payment{}, ErrNoValidToken
	}
	if err != nil {
		return Session{}, payment.Payment{}, err
	}

	endTime := time.Now().UTC()
	amount, err := r.rates.Fare(s.StartTime.Time, endTime)
	if err != nil {
		return Session{}, payment.Payment{}, err
	}

	err = tx.GetContext(ctx, &s, endSessionQuery, sessionID, endTime, checkpointID, attendantID, tokenID, amount)
	if err != nil {
		return Session{}, payment.Payment{}, err
	}

	var p payment.Payment
	err = tx.GetContext(ctx, &p, insertPaymentQuery, uuid.New(), sessionID, amount)
	if err != nil {
		return Session{}, payment.Payment{}, err
	}

	return s, p, tx.Commit()
}

const endSessionQuery = `
UPDATE rental_sessions
SET end_time = $2,
    end_checkpoint_id = $3,
    end_attendant_id = $4,
    end_token_id = $5,
    billed_amount = $6,
    status = 'COMPLETED'
WHERE id = $1
RETURNING *
`

const insertPaymentQuery = `
INSERT INTO payments (id, session_id, amount, method, status, created_at)
VALUES ($1, $2, $3, 'STRIPE', 'PENDING', now())
RETURNING *
`

// Cancel abandons a session that was booked but never started.
func (r *Repository) Cancel(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	var s Session
	err = tx.GetContext(ctx, &s, getSessionForUpdateQuery, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	if s.Status != StatusPending {
		return Session{}, ErrInvalidTransition
	}

	err = tx.GetContext(ctx, &s, cancelSessionQuery, sessionID)
	if err != nil {
		return Session{}, err
	}

	return s, tx.Commit()
}

const cancelSessionQuery = `
UPDATE rental_sessions SET status = 'CANCELLED'
WHERE id = $1
RETURNING *
`

// GetActive fetches the rider's open session, if any.
func (r *Repository) GetActive(ctx context.Context, riderID uuid.UUID) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, getActiveQuery, riderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const getActiveQuery = `
SELECT * FROM rental_sessions
WHERE rider_id = $1 AND status IN ('PENDING', 'ONGOING')
ORDER BY created_at DESC
LIMIT 1
`

// GetHistory lists the rider's completed sessions, most recent first.
func (r *Repository) GetHistory(ctx context.Context, riderID uuid.UUID) ([]Session, error) {
	var sessions []Session
	err := r.db.SelectContext(ctx, &sessions, getHistoryQuery, riderID)
	return sessions, err
}

const getHistoryQuery = `
SELECT * FROM rental_sessions
WHERE rider_id = $1 AND status = 'COMPLETED'
ORDER BY end_time DESC
`

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, getByIDQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

const getByIDQuery = `SELECT * FROM rental_sessions WHERE id = $1`

func (r *Repository) checkAssignment(ctx context.Context, tx *sqlx.Tx, attendantID, checkpointID uuid.UUID) error {
	var assigned uuid.UUID
	err := tx.GetContext(ctx, &assigned, attendantCheckpointQuery, attendantID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAttendantMismatch
	}
	if err != nil {
		return err
	}
	if assigned != checkpointID {
		return ErrAttendantMismatch
	}
	return nil
}

const attendantCheckpointQuery = `SELECT checkpoint_id FROM attendants WHERE id = $1`
