package token

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrAttendantNotFound  = errors.New("attendant not found")
	ErrAssignmentMismatch = errors.New("attendant not assigned to this checkpoint")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrTokenInvalid       = errors.New("token invalid or expired")
)

const txTimeout = 5 * time.Second

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Issue creates a fresh token for the pair and force-expires any token
// still valid for it, as one atomic unit. The attendant row is locked
// first so a concurrent issuance for the same pair serializes behind
// this one: a racing reader sees either the old token (now expired) or
// the new one, never two valid tokens.
func (r *Repository) Issue(ctx context.Context, attendantID, checkpointID uuid.UUID) (AuthToken, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return AuthToken{}, err
	}
	defer tx.Rollback()

	var assignedCheckpoint uuid.UUID
	err = tx.GetContext(ctx, &assignedCheckpoint, lockAttendantQuery, attendantID)
	if errors.Is(err, sql.ErrNoRows) {
		return AuthToken{}, ErrAttendantNotFound
	}
	if err != nil {
		return AuthToken{}, err
	}
	if assignedCheckpoint != checkpointID {
		return AuthToken{}, ErrAssignmentMismatch
	}

	var checkpointExists bool
	err = tx.GetContext(ctx, &checkpointExists, checkpointExistsQuery, checkpointID)
	if err != nil {
		return AuthToken{}, err
	}
	if !checkpointExists {
		return AuthToken{}, ErrCheckpointNotFound
	}

	_, err = tx.ExecContext(ctx, expireActiveTokensQuery, attendantID, checkpointID)
	if err != nil {
		return AuthToken{}, err
	}

	value, err := NewValue()
	if err != nil {
		return AuthToken{}, err
	}

	var t AuthToken
	err = tx.GetContext(ctx, &t, insertTokenQuery, uuid.New(), value, attendantID, checkpointID)
	if err != nil {
		return AuthToken{}, err
	}

	return t, tx.Commit()
}

const lockAttendantQuery = `SELECT checkpoint_id FROM attendants WHERE id = $1 FOR UPDATE`

const checkpointExistsQuery = `SELECT EXISTS (SELECT 1 FROM checkpoints WHERE id = $1)`

const expireActiveTokensQuery = `
UPDATE auth_tokens SET expires_at = now()
WHERE attendant_id = $1
  AND checkpoint_id = $2
  AND expires_at > now()
`

const insertTokenQuery = `
INSERT INTO auth_tokens (id, value, attendant_id, checkpoint_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, now(), now() + interval '5 minutes')
RETURNING *
`

// Validate looks up the newest unexpired token matching the triple.
// Read-only: expiry is evaluated at query time, nothing is swept.
func (r *Repository) Validate(ctx context.Context, value string, attendantID, checkpointID uuid.UUID) (AuthToken, error) {
	var t AuthToken
	err := r.db.GetContext(ctx, &t, validateTokenQuery, value, attendantID, checkpointID)
	if errors.Is(err, sql.ErrNoRows) {
		return AuthToken{}, ErrTokenInvalid
	}
	return t, err
}

const validateTokenQuery = `
SELECT * FROM auth_tokens
WHERE value = $1
  AND attendant_id = $2
  AND checkpoint_id = $3
  AND expires_at > now()
ORDER BY created_at DESC
LIMIT 1
`
