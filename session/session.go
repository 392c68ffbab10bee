package session

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusOngoing   Status = "ONGOING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Session is one rental, from booking through billed completion. It is
// created PENDING with the start fields taken from the validated token,
// and only the transition operations mutate it. BilledAmount is set
// exactly when the session is COMPLETED.
type Session struct {
	ID                uuid.UUID
	RiderID           uuid.UUID           `db:"rider_id"`
	StartCheckpointID uuid.UUID           `db:"start_checkpoint_id"`
	StartAttendantID  uuid.UUID           `db:"start_attendant_id"`
	StartTokenID      uuid.UUID           `db:"start_token_id"`
	EndCheckpointID   uuid.NullUUID       `db:"end_checkpoint_id"`
	EndAttendantID    uuid.NullUUID       `db:"end_attendant_id"`
	EndTokenID        uuid.NullUUID       `db:"end_token_id"`
	StartTime         sql.NullTime        `db:"start_time"`
	EndTime           sql.NullTime        `db:"end_time"`
	BilledAmount      decimal.NullDecimal `db:"billed_amount"`
	Status            Status
	CreatedAt         time.Time `db:"created_at"`
}

// Open reports whether the session still blocks the rider from booking
// another one.
func (s Session) Open() bool {
	return s.Status == StatusPending || s.Status == StatusOngoing
}
