package reconcile

import (
	"time"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
	"clubhouse/pkg/utils"
)

const PauseReasonPaymentFailure = "Payment failure detected"

// Target is the state an account should be moved to.
type Target struct {
	Status          db_models.AccountStatus
	Paid            bool
	SubscriptionEnd *time.Time
	Failure         *payments.FailureDescriptor
}

// TargetFor applies the sync priority: failures, active subscription, trialing subscription,
// payment-based activity, then the account's own trial. A suspended account keeps its status;
// only the paid flag, end date and failure history follow the processor.
func TargetFor(acc *db_models.Account, desc payments.StatusDescriptor, now time.Time) Target {
	t := Target{SubscriptionEnd: acc.SubscriptionEnd}
	if desc.CurrentPeriodEnd != nil {
		end := *desc.CurrentPeriodEnd
		t.SubscriptionEnd = &end
	}

	switch {
	case desc.HasPaymentFailures && desc.LastPaymentFailure != nil:
		t.Status = db_models.StatusPaused
		t.Failure = desc.LastPaymentFailure
	case desc.HasActiveSubscription && desc.SubscriptionStatus == payments.StatusActive:
		t.Status = db_models.StatusActive
		t.Paid = true
	case desc.HasActiveSubscription && desc.SubscriptionStatus == payments.StatusTrialing:
		t.Status = db_models.StatusTrial
	case desc.PaymentBasedActive:
		t.Status = db_models.StatusActive
	case acc.TrialEnd != nil && now.Before(*acc.TrialEnd):
		t.Status = db_models.StatusTrial
	default:
		t.Status = db_models.StatusInactive
	}
	if acc.Status == db_models.StatusSuspended {
		t.Status = db_models.StatusSuspended
	}
	return t
}

// Differs reports whether applying t would change acc. newFailure is true when the target's
// failure is not yet in the account's history.
func (t Target) Differs(acc *db_models.Account, newFailure bool) bool {
	if t.Status != acc.Status || t.Paid != acc.PaidForCurrentMonth {
		return true
	}
	if t.SubscriptionEnd != nil && !utils.WithinTolerance(t.SubscriptionEnd, acc.SubscriptionEnd, endDateTolerance) {
		return true
	}
	return t.Failure != nil && newFailure
}
