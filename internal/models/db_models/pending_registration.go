package db_models

import "time"

const PendingRegistrationTTL = 24 * time.Hour

// PendingRegistration holds signup data until checkout completes, is cancelled, or expires.
type PendingRegistration struct {
	BaseModel
	Username         string `gorm:"index;size:64;not null"`
	Email            string `gorm:"index;not null"`
	PasswordHash     string `json:"-"`
	FirstName        string
	LastName         string
	Phone            string     `gorm:"size:32"`
	Membership       Membership `gorm:"size:16;not null"`
	StripeCustomerID string     `gorm:"index"`
	Waiver           Waiver     `gorm:"embedded;embeddedPrefix:waiver_"`
	ExpiresAt        time.Time  `gorm:"index;not null"`
}

func (p *PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
