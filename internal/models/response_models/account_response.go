package response_models

import (
	"time"

	"github.com/google/uuid"

	"clubhouse/internal/models/db_models"
)

type AccountLoginResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

type SignUpResponse struct {
	PendingID uuid.UUID `json:"pending_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AccountResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Phone               string     `json:"phone"`
	ProfilePhoto        string     `json:"profile_photo,omitempty"`
	Role                string     `json:"role"`
	AccountType         string     `json:"account_type"`
	Status              string     `json:"status"`
	SubscriptionStatus  string     `json:"subscription_status"`
	Membership          string     `json:"membership"`
	TrialEnd            *time.Time `json:"trial_end,omitempty"`
	SubscriptionEnd     *time.Time `json:"subscription_end,omitempty"`
	PaidForCurrentMonth bool       `json:"paid_for_current_month"`
	WaiverAccepted      bool       `json:"waiver_accepted"`
	WaiverVersion       string     `json:"waiver_version,omitempty"`
}

func NewAccountResponse(a *db_models.Account) AccountResponse {
	return AccountResponse{
		ID:                  a.ID,
		Username:            a.Username,
		Email:               a.Email,
		FirstName:           a.FirstName,
		LastName:            a.LastName,
		Phone:               a.Phone,
		ProfilePhoto:        a.ProfilePhoto,
		Role:                a.Role,
		AccountType:         string(a.AccountType),
		Status:              string(a.Status),
		SubscriptionStatus:  a.Status.SubscriptionStatus(),
		Membership:          string(a.Membership),
		TrialEnd:            a.TrialEnd,
		SubscriptionEnd:     a.SubscriptionEnd,
		PaidForCurrentMonth: a.PaidForCurrentMonth,
		WaiverAccepted:      a.Waiver.Accepted,
		WaiverVersion:       a.Waiver.Version,
	}
}

type PaymentFailureResponse struct {
	StripeEventID string    `json:"stripe_event_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Reason        string    `json:"reason"`
	Amount        float64   `json:"amount"`
	Source        string    `json:"source"`
}

// AdminAccountResponse adds the billing and moderation fields only admins see.
type AdminAccountResponse struct {
	AccountResponse
	StripeCustomerID   string                    `json:"stripe_customer_id"`
	LastPaymentFailure db_models.FailureSnapshot `json:"last_payment_failure"`
	AccountPauseReason string                    `json:"account_pause_reason,omitempty"`
	AccountPausedAt    *time.Time                `json:"account_paused_at,omitempty"`
	AdminNotes         string                    `json:"admin_notes,omitempty"`
	LastLoginAt        *time.Time                `json:"last_login_at,omitempty"`
	PaymentFailures    []PaymentFailureResponse  `json:"payment_failures"`
	WaiverAudits       []db_models.WaiverAudit   `json:"waiver_audits,omitempty"`
	Reservations       []db_models.Reservation   `json:"reservations,omitempty"`
}

func NewAdminAccountResponse(a *db_models.Account, failures []db_models.PaymentFailure) AdminAccountResponse {
	out := AdminAccountResponse{
		AccountResponse:    NewAccountResponse(a),
		StripeCustomerID:   a.StripeCustomerID,
		LastPaymentFailure: a.LastPaymentFailure,
		AccountPauseReason: a.AccountPauseReason,
		AccountPausedAt:    a.AccountPausedAt,
		AdminNotes:         a.AdminNotes,
		LastLoginAt:        a.LastLoginAt,
		PaymentFailures:    make([]PaymentFailureResponse, 0, len(failures)),
	}
	for _, f := range failures {
		out.PaymentFailures = append(out.PaymentFailures, PaymentFailureResponse{
			StripeEventID: f.StripeEventID,
			OccurredAt:    f.OccurredAt,
			Reason:        f.Reason,
			Amount:        f.Amount,
			Source:        f.Source,
		})
	}
	return out
}
