package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
)

// Payment is owned 1:1 by its completed session. Created PENDING in the
// same transaction that completes the session; only the reconciler
// moves it to PAID or FAILED.
type Payment struct {
	ID        uuid.UUID
	SessionID uuid.UUID       `db:"session_id"`
	Amount    decimal.Decimal `db:"amount"`
	Method    string
	Status    Status
	CreatedAt time.Time    `db:"created_at"`
	PaidAt    sql.NullTime `db:"paid_at"`
}
