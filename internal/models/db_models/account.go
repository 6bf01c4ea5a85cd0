package db_models

import (
	"strings"
	"time"
)

// AccountStatus is the single authoritative membership state.
//
// Mapping from the two legacy fields (subscriptionStatus / accountStatus):
//
//	trial/trial       -> trial
//	active/active     -> active
//	inactive/inactive -> inactive
//	expired/expired   -> expired
//	*/paused          -> paused
//	*/suspended       -> suspended
//
// accountStatus wins when the two disagree, since it is the field admins and
// payment failures write to.
type AccountStatus string

const (
	StatusTrial     AccountStatus = "trial"
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusPaused    AccountStatus = "paused"
	StatusSuspended AccountStatus = "suspended"
	StatusExpired   AccountStatus = "expired"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case StatusTrial, StatusActive, StatusInactive, StatusPaused, StatusSuspended, StatusExpired:
		return true
	}
	return false
}

// SubscriptionStatus is the legacy subscription view of the status.
func (s AccountStatus) SubscriptionStatus() string {
	switch s {
	case StatusPaused, StatusSuspended, StatusInactive:
		return string(StatusInactive)
	default:
		return string(s)
	}
}

// StatusFromLegacy collapses a legacy (subscriptionStatus, accountStatus) pair.
func StatusFromLegacy(subscriptionStatus, accountStatus string) AccountStatus {
	if s := AccountStatus(strings.ToLower(accountStatus)); s.Valid() {
		return s
	}
	if s := AccountStatus(strings.ToLower(subscriptionStatus)); s.Valid() {
		return s
	}
	return StatusInactive
}

type Membership string

const (
	MembershipMonthly  Membership = "monthly"
	MembershipAnnual   Membership = "annual"
	MembershipLifetime Membership = "lifetime"
)

func (m Membership) Valid() bool {
	return m == MembershipMonthly || m == MembershipAnnual || m == MembershipLifetime
}

// PeriodEnd is the end of the first paid period starting at from; nil for lifetime.
func (m Membership) PeriodEnd(from time.Time) *time.Time {
	var end time.Time
	switch m {
	case MembershipAnnual:
		end = from.AddDate(0, 0, 365)
	case MembershipLifetime:
		return nil
	default:
		end = from.AddDate(0, 0, 30)
	}
	return &end
}

type AccountType string

const (
	AccountTypeFounder   AccountType = "founder"
	AccountTypeModerator AccountType = "moderator"
	AccountTypeMember    AccountType = "member"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const CurrentWaiverVersion = "2025-04-17"

// Waiver is the liability release. Write-once after acceptance.
type Waiver struct {
	Accepted   bool       `json:"accepted"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	Version    string     `gorm:"size:16" json:"version,omitempty"`
	IPAddress  string     `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
}

// FailureSnapshot is the most recent payment failure; the full history lives in payment_failures.
type FailureSnapshot struct {
	At            *time.Time `json:"at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	StripeEventID string     `json:"stripe_event_id,omitempty"`
	Amount        float64    `json:"amount,omitempty"`
	Attempts      int        `json:"attempts"`
}

type Account struct {
	BaseModel
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-"`
	FirstName    string
	LastName     string
	Phone        string `gorm:"size:32"`
	ProfilePhoto string

	Role        string      `gorm:"size:16;not null"`
	AccountType AccountType `gorm:"size:16;not null"`

	Status              AccountStatus `gorm:"size:16;index;not null"`
	Membership          Membership    `gorm:"size:16"`
	StripeCustomerID    string        `gorm:"index"`
	TrialEnd            *time.Time
	SubscriptionStart   *time.Time
	SubscriptionEnd     *time.Time
	PaidForCurrentMonth bool

	LastPaymentFailure FailureSnapshot `gorm:"embedded;embeddedPrefix:last_failure_"`
	AccountPauseReason string
	AccountPausedAt    *time.Time
	AdminNotes         string

	LastLoginAt *time.Time
	Waiver      Waiver `gorm:"embedded;embeddedPrefix:waiver_"`
}

func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

func (a *Account) HasPaymentFailure() bool {
	return a.LastPaymentFailure.At != nil
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}
