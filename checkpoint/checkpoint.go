package checkpoint

import (
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a staffed location where sessions start and end. Static
// reference data as far as the session core is concerned.
type Checkpoint struct {
	ID             uuid.UUID
	Name           string
	Capacity       int
	AvailableUnits int       `db:"available_units"`
	CreatedAt      time.Time `db:"created_at"`
}
