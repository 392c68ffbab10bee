package attendant

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("attendant not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetAttendant(ctx context.Context, id uuid.UUID) (Attendant, error) {
	var a Attendant
	err := r.db.GetContext(ctx, &a, getAttendantQuery, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Attendant{}, ErrNotFound
	}
	return a, err
}

const getAttendantQuery = `SELECT * FROM attendants WHERE id = $1`

// GetByCheckpoint lists the attendants currently assigned to a checkpoint.
func (r *Repository) GetByCheckpoint(ctx context.Context, checkpointID uuid.UUID) ([]Attendant, error) {
	var attendants []Attendant
	err := r.db.SelectContext(ctx, &attendants, getByCheckpointQuery, checkpointID)
	return attendants, err
}

const getByCheckpointQuery = `SELECT * FROM attendants WHERE checkpoint_id = $1 ORDER BY name ASC`
