package attendant

import (
	"time"

	"github.com/google/uuid"
)

// Attendant is checkpoint staff. Each attendant is assigned to exactly
// one checkpoint at a time and may only issue tokens for it.
type Attendant struct {
	ID           uuid.UUID
	Name         string
	CheckpointID uuid.UUID `db:"checkpoint_id"`
	CreatedAt    time.Time `db:"created_at"`
}
