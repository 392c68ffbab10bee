package token

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Validity is how long an issued token can be used. The window is short
// because a token proves physical presence at a checkpoint right now.
const Validity = 5 * time.Minute

// AuthToken is a short-lived opaque credential scoped to one
// (attendant, checkpoint) pair. Tokens are never deleted; superseded
// tokens are force-expired and kept for audit.
type AuthToken struct {
	ID           uuid.UUID
	Value        string    `db:"value"`
	AttendantID  uuid.UUID `db:"attendant_id"`
	CheckpointID uuid.UUID `db:"checkpoint_id"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// NewValue mints an unpredictable opaque token value.
func NewValue() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
