package checkpoint

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("checkpoint not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCheckpoints(ctx context.Context) ([]Checkpoint, error) {
	var checkpoints []Checkpoint
	err := r.db.SelectContext(ctx, &checkpoints, getCheckpointsQuery)
	return checkpoints, err
}

const getCheckpointsQuery = `SELECT * FROM checkpoints ORDER BY name ASC`

func (r *Repository) GetCheckpoint(ctx context.Context, id uuid.UUID) (Checkpoint, error) {
	var cp Checkpoint
	err := r.db.GetContext(ctx, &cp, getCheckpointQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNotFound
	}
	return cp, err
}

const getCheckpointQuery = `SELECT * FROM checkpoints WHERE id = $1`
