package db_models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PaymentFailure is one entry of an account's failure history, unique per external event.
type PaymentFailure struct {
	BaseModel
	AccountID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_failure_account_event"`
	StripeEventID string    `gorm:"not null;uniqueIndex:idx_failure_account_event"`
	OccurredAt    time.Time `gorm:"index"`
	Reason        string
	Amount        float64
	Source        string `gorm:"size:64"`
	Raw           datatypes.JSON
}
