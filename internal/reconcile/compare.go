// Package reconcile compares account records against the payment processor and repairs drift.
package reconcile

import (
	"fmt"
	"time"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
	"clubhouse/pkg/utils"
)

// endDateTolerance absorbs timezone differences between the store and the processor.
const endDateTolerance = 24 * time.Hour

const (
	ReasonNoCustomerID      = "No Stripe Customer ID"
	ReasonCustomerNotFound  = "Customer not found in Stripe"
	RecommendFixDiscrepancy = "Update account status and paid flag for accounts with discrepancies"
	RecommendReviewCustomer = "Review Stripe customers not in database - may need to be added or removed"
	RecommendReviewAccounts = "Review database accounts without Stripe customers"
)

// Discrepancies lists, in a fixed order, every way acc disagrees with the processor's view.
func Discrepancies(acc *db_models.Account, desc payments.StatusDescriptor) []string {
	var out []string
	shouldBeActive := desc.ShouldBeActive()
	shouldBePaid := desc.ShouldBePaid()

	if acc.Status == db_models.StatusActive && !shouldBeActive {
		last := "none"
		if desc.LastPaymentDate != nil {
			last = desc.LastPaymentDate.In(utils.ClubLocation()).Format("1/2/2006")
		}
		out = append(out, fmt.Sprintf("Account marked active but no active subscription/payment in Stripe (last payment: %s)", last))
	}

	if acc.Status == db_models.StatusTrial && shouldBeActive && !desc.HasActiveSubscription {
		out = append(out, "Account marked trial but has active payment in Stripe")
	}

	if acc.PaidForCurrentMonth != shouldBePaid {
		out = append(out, fmt.Sprintf("paidForCurrentMonth mismatch: DB=%t, Stripe=%t", acc.PaidForCurrentMonth, shouldBePaid))
	}

	if desc.HasPaymentFailures && !acc.HasPaymentFailure() {
		out = append(out, "Payment failures detected in Stripe but not recorded in database")
	}

	if desc.HasPaymentFailures && acc.Status != db_models.StatusPaused && acc.Status != db_models.StatusSuspended {
		out = append(out, "Account has payment failures but is not paused")
	}

	if acc.SubscriptionEnd != nil && desc.CurrentPeriodEnd != nil &&
		!utils.WithinTolerance(acc.SubscriptionEnd, desc.CurrentPeriodEnd, endDateTolerance) {
		out = append(out, fmt.Sprintf("Subscription end date mismatch: DB=%s, Stripe=%s",
			acc.SubscriptionEnd.UTC().Format(time.RFC3339), desc.CurrentPeriodEnd.UTC().Format(time.RFC3339)))
	}

	return out
}
