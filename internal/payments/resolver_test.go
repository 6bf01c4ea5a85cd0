package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/config"
	"clubhouse/internal/payments"
	"clubhouse/internal/payments/paymentstest"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newResolver(g payments.Gateway, annual payments.AnnualMatcher) *payments.Resolver {
	return payments.NewResolver(g, annual, nil).WithClock(func() time.Time { return now })
}

func TestActiveSubscriptionShortCircuits(t *testing.T) {
	g := paymentstest.NewGateway()
	end := now.Add(20 * 24 * time.Hour)
	g.Subscriptions["cus_1"] = []payments.Subscription{
		{ID: "sub_old", Status: "canceled", CurrentPeriodEnd: now.Add(-time.Hour)},
		{ID: "sub_1", Status: "trialing", CurrentPeriodEnd: end},
	}

	desc := newResolver(g, nil).Resolve(context.Background(), "cus_1")

	assert.True(t, desc.HasActiveSubscription)
	assert.Equal(t, payments.StatusTrialing, desc.SubscriptionStatus)
	require.NotNil(t, desc.CurrentPeriodEnd)
	assert.True(t, end.Equal(*desc.CurrentPeriodEnd))
	assert.False(t, desc.ShouldBePaid())
	assert.True(t, desc.ShouldBeActive())
	assert.Zero(t, g.CallCount("ListCharges"))
	assert.Zero(t, g.CallCount("ListPaymentIntents"))
	assert.Zero(t, g.CallCount("GetCustomer"))
}

func TestSingleRecentChargeIsPaymentBasedActive(t *testing.T) {
	g := paymentstest.NewGateway()
	g.AddCustomer(payments.Customer{ID: "cus_2", Email: "pat@example.com", Name: "Pat"})
	paid := now.Add(-10 * 24 * time.Hour)
	g.Charges["cus_2"] = []payments.Charge{{ID: "ch_1", Amount: 2000, Status: "succeeded", Created: paid}}

	desc := newResolver(g, &config.AnnualAllowlist{}).Resolve(context.Background(), "cus_2")

	assert.False(t, desc.HasActiveSubscription)
	assert.Equal(t, payments.StatusPaymentBased, desc.SubscriptionStatus)
	assert.True(t, desc.PaymentBasedActive)
	require.NotNil(t, desc.CurrentPeriodEnd)
	assert.True(t, paid.AddDate(0, 0, 30).Equal(*desc.CurrentPeriodEnd))
	require.NotNil(t, desc.LastPaymentDate)
	assert.True(t, paid.Equal(*desc.LastPaymentDate))
	assert.False(t, desc.HasPaymentFailures)
}

func TestAllowlistedCustomerGetsAYear(t *testing.T) {
	g := paymentstest.NewGateway()
	g.AddCustomer(payments.Customer{ID: "cus_3", Email: "Jordan.Rivers@example.com"})
	paid := now.Add(-200 * 24 * time.Hour)
	g.Charges["cus_3"] = []payments.Charge{{ID: "ch_1", Amount: 12000, Status: "succeeded", Created: paid}}

	annual := &config.AnnualAllowlist{Entries: []string{"jordan.rivers"}}
	desc := newResolver(g, annual).Resolve(context.Background(), "cus_3")

	assert.True(t, desc.PaymentBasedActive)
	assert.True(t, paid.AddDate(0, 0, 365).Equal(*desc.CurrentPeriodEnd))

	desc = newResolver(g, nil).Resolve(context.Background(), "cus_3")
	assert.False(t, desc.PaymentBasedActive)
}

func TestOnlyFailedChargesSurfaceFailures(t *testing.T) {
	g := paymentstest.NewGateway()
	g.AddCustomer(payments.Customer{ID: "cus_4", Email: "sam@example.com"})
	g.Charges["cus_4"] = []payments.Charge{
		{ID: "ch_old", Amount: 2000, Status: "failed", Created: now.Add(-48 * time.Hour), FailureMessage: "Your card was declined."},
		{ID: "ch_new", Amount: 2500, Status: "failed", Created: now.Add(-24 * time.Hour)},
	}

	desc := newResolver(g, nil).Resolve(context.Background(), "cus_4")

	assert.True(t, desc.HasPaymentFailures)
	assert.False(t, desc.PaymentBasedActive)
	assert.Equal(t, payments.StatusNone, desc.SubscriptionStatus)
	require.NotNil(t, desc.LastPaymentFailure)
	assert.Equal(t, "ch_new", desc.LastPaymentFailure.StripeEventID)
	assert.Equal(t, "Payment failed", desc.LastPaymentFailure.Reason)
	assert.InDelta(t, 25.0, desc.LastPaymentFailure.Amount, 0.001)
}

func TestIntentNearChargeIsNotDoubleCounted(t *testing.T) {
	g := paymentstest.NewGateway()
	g.AddCustomer(payments.Customer{ID: "cus_5", Email: "lee@example.com"})
	paid := now.Add(-40 * 24 * time.Hour)
	g.Charges["cus_5"] = []payments.Charge{{ID: "ch_1", Amount: 2000, Status: "succeeded", Created: paid}}
	g.Intents["cus_5"] = []payments.PaymentIntent{
		{ID: "pi_dup", Amount: 2000, Status: "succeeded", Created: paid.Add(30 * time.Second)},
		{ID: "pi_fail", Amount: 2000, Status: "requires_payment_method", Created: paid.Add(-time.Hour), LastErrorMessage: "insufficient funds"},
	}

	desc := newResolver(g, nil).Resolve(context.Background(), "cus_5")

	assert.Equal(t, payments.StatusPaymentBased, desc.SubscriptionStatus)
	assert.False(t, desc.PaymentBasedActive)
	assert.True(t, paid.Equal(*desc.LastPaymentDate))
	require.NotNil(t, desc.LastPaymentFailure)
	assert.Equal(t, "insufficient funds", desc.LastPaymentFailure.Reason)
}

func TestDuplicateCustomerChargesAreMerged(t *testing.T) {
	g := paymentstest.NewGateway()
	g.AddCustomer(payments.Customer{ID: "cus_a", Email: "twin@example.com"})
	g.AddCustomer(payments.Customer{ID: "cus_b", Email: "twin@example.com"})
	paid := now.Add(-5 * 24 * time.Hour)
	g.Charges["cus_b"] = []payments.Charge{{ID: "ch_b", Amount: 2000, Status: "succeeded", Created: paid}}

	desc := newResolver(g, nil).Resolve(context.Background(), "cus_a")

	assert.True(t, desc.PaymentBasedActive)
	assert.Equal(t, 1, g.CallCount("ListCustomersByEmail"))
}

func TestNoHistoryIsNone(t *testing.T) {
	g := paymentstest.NewGateway()
	g.AddCustomer(payments.Customer{ID: "cus_6"})

	desc := newResolver(g, nil).Resolve(context.Background(), "cus_6")

	assert.Equal(t, payments.StatusNone, desc.SubscriptionStatus)
	assert.False(t, desc.ShouldBeActive())
	assert.Zero(t, g.CallCount("ListCustomersByEmail"))
}

func TestGatewayErrorIsUnknown(t *testing.T) {
	g := paymentstest.NewGateway()
	g.FailOn["ListSubscriptions"] = true

	desc := newResolver(g, nil).Resolve(context.Background(), "cus_7")

	assert.True(t, desc.Unknown())
	assert.NotEmpty(t, desc.Error)
	assert.False(t, desc.ShouldBeActive())
}
