package rider

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Rider is owned by the identity-sync process; the session core only
// reads it. ExternalID is the identity provider's subject claim.
type Rider struct {
	ID         uuid.UUID
	ExternalID string         `db:"external_id"`
	Name       sql.NullString `db:"name"`
	Email      sql.NullString `db:"email"`
	CreatedAt  time.Time      `db:"created_at"`
}

// DuesBlockThreshold is the number of unpaid completed sessions at which
// a rider can no longer book.
const DuesBlockThreshold = 3
