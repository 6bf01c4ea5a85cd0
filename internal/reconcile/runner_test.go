package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/infra"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/payments/paymentstest"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/repositories"
	"clubhouse/internal/testutil"
	"clubhouse/pkg/utils"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type recordingMailer struct {
	mu       sync.Mutex
	subjects []string
}

func (m *recordingMailer) SendAdminReport(_ context.Context, subject, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
}

type fixture struct {
	runner   *reconcile.Runner
	accounts repositories.AccountRepository
	failures repositories.PaymentFailureRepository
	gateway  *paymentstest.Gateway
	mailer   *recordingMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, repositories.UseAccountGuard(db, repositories.NewAccountGuard("", nil)))

	f := &fixture{
		accounts: repositories.NewAccountRepository(db),
		failures: repositories.NewPaymentFailureRepository(db),
		gateway:  paymentstest.NewGateway(),
		mailer:   &recordingMailer{},
	}
	resolver := payments.NewResolver(f.gateway, nil, nil).WithClock(func() time.Time { return now })
	f.runner = reconcile.NewRunner(
		f.accounts, f.failures, repositories.NewReconcileRunRepository(db),
		f.gateway, resolver, f.mailer, infra.NewLocalLocker(), 3, nil,
	).WithClock(func() time.Time { return now })
	return f
}

func (f *fixture) account(t *testing.T, username, customerID string, status db_models.AccountStatus, paid bool) *db_models.Account {
	t.Helper()
	acc := &db_models.Account{
		Username:            username,
		Email:               username + "@example.com",
		Role:                db_models.RoleUser,
		AccountType:         db_models.AccountTypeMember,
		Status:              status,
		Membership:          db_models.MembershipMonthly,
		StripeCustomerID:    customerID,
		PaidForCurrentMonth: paid,
	}
	require.NoError(t, f.accounts.Create(context.Background(), acc))
	if customerID != "" {
		f.gateway.AddCustomer(payments.Customer{ID: customerID, Email: acc.Email})
	}
	return acc
}

func seed(t *testing.T, f *fixture) {
	// in sync: active subscription, paid
	end := now.Add(15 * 24 * time.Hour)
	ok := f.account(t, "alice", "cus_alice", db_models.StatusActive, true)
	ok.SubscriptionEnd = &end
	require.NoError(t, f.accounts.Save(context.Background(), ok))
	f.gateway.Subscriptions["cus_alice"] = []payments.Subscription{{ID: "sub_a", Status: "active", CurrentPeriodEnd: end}}

	// marked active, nothing paid
	f.account(t, "bob", "cus_bob", db_models.StatusActive, false)

	// failed charges, not paused
	f.account(t, "carol", "cus_carol", db_models.StatusActive, false)
	f.gateway.Charges["cus_carol"] = []payments.Charge{
		{ID: "ch_fail", Amount: 2000, Status: "failed", Created: now.Add(-24 * time.Hour), FailureMessage: "card declined"},
	}

	// no customer id at all
	f.account(t, "dave", "", db_models.StatusTrial, false)

	// stale customer id
	stale := f.account(t, "erin", "cus_gone", db_models.StatusActive, true)
	delete(f.gateway.Customers, stale.StripeCustomerID)

	// processor-only customer
	f.gateway.AddCustomer(payments.Customer{ID: "cus_orphan", Email: "orphan@example.com"})
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	ctx := context.Background()

	first, err := f.runner.Analyze(ctx)
	require.NoError(t, err)
	second, err := f.runner.Analyze(ctx)
	require.NoError(t, err)

	a, err := first.JSON()
	require.NoError(t, err)
	b, err := second.JSON()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.Discrepant(), second.Discrepant())

	discrepant := first.Discrepant()
	require.Len(t, discrepant, 2)
	assert.Equal(t, "bob", discrepant[0].Username)
	assert.Equal(t, []string{
		"Account marked active but no active subscription/payment in Stripe (last payment: none)",
	}, discrepant[0].Discrepancies)
	assert.Equal(t, "carol", discrepant[1].Username)
	assert.Equal(t, []string{
		"Account marked active but no active subscription/payment in Stripe (last payment: none)",
		"Payment failures detected in Stripe but not recorded in database",
		"Account has payment failures but is not paused",
	}, discrepant[1].Discrepancies)

	require.Len(t, first.UnmatchedAccounts, 2)
	assert.Equal(t, reconcile.ReasonNoCustomerID, first.UnmatchedAccounts[0].Reason)
	assert.Equal(t, reconcile.ReasonCustomerNotFound, first.UnmatchedAccounts[1].Reason)
	require.Len(t, first.UnmatchedCustomers, 1)
	assert.Equal(t, "cus_orphan", first.UnmatchedCustomers[0].CustomerID)
	assert.Len(t, first.Recommendations, 3)
}

func TestSyncRepairsAccounts(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	ctx := context.Background()

	result, err := f.runner.Run(ctx, reconcile.ModeSync)
	require.NoError(t, err)
	require.NotNil(t, result.Sync)
	require.NotNil(t, result.Final)
	assert.Empty(t, result.Sync.Errors)
	assert.Equal(t, 3, result.Sync.Updated)
	assert.Empty(t, result.Final.Discrepant())

	bob, err := f.accounts.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, db_models.StatusInactive, bob.Status)

	carol, err := f.accounts.FindByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, db_models.StatusPaused, carol.Status)
	assert.False(t, carol.PaidForCurrentMonth)
	assert.Equal(t, reconcile.PauseReasonPaymentFailure, carol.AccountPauseReason)
	assert.Equal(t, "ch_fail", carol.LastPaymentFailure.StripeEventID)
	assert.Equal(t, 1, carol.LastPaymentFailure.Attempts)

	erin, err := f.accounts.FindByUsername(ctx, "erin")
	require.NoError(t, err)
	assert.Empty(t, erin.StripeCustomerID)
	assert.Equal(t, db_models.StatusInactive, erin.Status)
	assert.False(t, erin.PaidForCurrentMonth)

	history, err := f.failures.ListByAccount(ctx, carol.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// a second pass has nothing left to do and records no duplicate failure
	again, err := f.runner.Run(ctx, reconcile.ModeSync)
	require.NoError(t, err)
	assert.Nil(t, again.Sync)
	history, err = f.failures.ListByAccount(ctx, carol.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.Equal(t, []string{
		"Stripe Sync Analysis Report",
		"Stripe Sync Results",
		"Stripe Sync Final Analysis",
		"Stripe Sync Analysis Report",
	}, f.mailer.subjects)
}

func TestAnalyzeModeWritesNothing(t *testing.T) {
	f := newFixture(t)
	seed(t, f)
	ctx := context.Background()

	result, err := f.runner.Run(ctx, reconcile.ModeAnalyze)
	require.NoError(t, err)
	assert.Nil(t, result.Sync)

	bob, err := f.accounts.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, db_models.StatusActive, bob.Status)
}

func TestSyncIsSingleFlight(t *testing.T) {
	f := newFixture(t)
	locker := infra.NewLocalLocker()
	release, err := locker.Acquire(context.Background(), "reconcile:sync", time.Minute)
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	runner := reconcile.NewRunner(f.accounts, f.failures, nil, f.gateway,
		payments.NewResolver(f.gateway, nil, nil), nil, locker, 1, nil)

	_, err = runner.Run(context.Background(), reconcile.ModeSync)
	require.ErrorIs(t, err, utils.ErrReconcileInProgress)
}

func TestTargetPriority(t *testing.T) {
	trialEnd := now.Add(48 * time.Hour)
	acc := &db_models.Account{Status: db_models.StatusActive, TrialEnd: &trialEnd}

	cases := []struct {
		name string
		desc payments.StatusDescriptor
		want db_models.AccountStatus
		paid bool
	}{
		{"failures win", payments.StatusDescriptor{
			HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive,
			HasPaymentFailures: true, LastPaymentFailure: &payments.FailureDescriptor{StripeEventID: "x"},
		}, db_models.StatusPaused, false},
		{"active subscription", payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive}, db_models.StatusActive, true},
		{"trialing subscription", payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusTrialing}, db_models.StatusTrial, false},
		{"payment based", payments.StatusDescriptor{SubscriptionStatus: payments.StatusPaymentBased, PaymentBasedActive: true}, db_models.StatusActive, false},
		{"own trial", payments.StatusDescriptor{SubscriptionStatus: payments.StatusNone}, db_models.StatusTrial, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := reconcile.TargetFor(acc, tc.desc, now)
			assert.Equal(t, tc.want, target.Status)
			assert.Equal(t, tc.paid, target.Paid)
		})
	}

	expired := &db_models.Account{Status: db_models.StatusActive}
	assert.Equal(t, db_models.StatusInactive, reconcile.TargetFor(expired, payments.StatusDescriptor{}, now).Status)
}

func TestSyncKeepsSuspension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	end := now.Add(20 * 24 * time.Hour)
	sam := f.account(t, "sam", "cus_sam", db_models.StatusSuspended, false)
	f.gateway.Subscriptions["cus_sam"] = []payments.Subscription{{ID: "sub_s", Status: "active", CurrentPeriodEnd: end}}

	sue := f.account(t, "sue", "cus_sue", db_models.StatusSuspended, false)
	sue.AccountPauseReason = "Suspended by administrator"
	require.NoError(t, f.accounts.Save(ctx, sue))
	f.gateway.Charges["cus_sue"] = []payments.Charge{
		{ID: "ch_sue", Amount: 2000, Status: "failed", Created: now.Add(-48 * time.Hour), FailureMessage: "card declined"},
	}

	result, err := f.runner.Run(ctx, reconcile.ModeSync)
	require.NoError(t, err)
	require.NotNil(t, result.Sync)
	assert.Equal(t, 2, result.Sync.Updated)
	assert.Empty(t, result.Final.Discrepant())

	got, err := f.accounts.FindByUsername(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, db_models.StatusSuspended, got.Status)
	assert.True(t, got.PaidForCurrentMonth)
	require.NotNil(t, got.SubscriptionEnd)
	assert.WithinDuration(t, end, *got.SubscriptionEnd, time.Second)

	got, err = f.accounts.FindByUsername(ctx, "sue")
	require.NoError(t, err)
	assert.Equal(t, db_models.StatusSuspended, got.Status)
	assert.Equal(t, "Suspended by administrator", got.AccountPauseReason)
	assert.Equal(t, "ch_sue", got.LastPaymentFailure.StripeEventID)

	history, err := f.failures.ListByAccount(ctx, sam.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	history, err = f.failures.ListByAccount(ctx, sue.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSyncKeepsSuspensionWhenCustomerIsGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc := f.account(t, "stan", "cus_stan", db_models.StatusSuspended, true)
	delete(f.gateway.Customers, acc.StripeCustomerID)

	_, err := f.runner.Run(ctx, reconcile.ModeSync)
	require.NoError(t, err)

	got, err := f.accounts.FindByUsername(ctx, "stan")
	require.NoError(t, err)
	assert.Equal(t, db_models.StatusSuspended, got.Status)
	assert.Empty(t, got.StripeCustomerID)
	assert.False(t, got.PaidForCurrentMonth)
}

func TestTargetKeepsSuspension(t *testing.T) {
	acc := &db_models.Account{Status: db_models.StatusSuspended}

	target := reconcile.TargetFor(acc, payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive}, now)
	assert.Equal(t, db_models.StatusSuspended, target.Status)
	assert.True(t, target.Paid)

	target = reconcile.TargetFor(acc, payments.StatusDescriptor{
		HasPaymentFailures: true, LastPaymentFailure: &payments.FailureDescriptor{StripeEventID: "ch_1"},
	}, now)
	assert.Equal(t, db_models.StatusSuspended, target.Status)
	assert.False(t, target.Paid)
	require.NotNil(t, target.Failure)
	assert.Equal(t, "ch_1", target.Failure.StripeEventID)
}

func TestDiscrepancies(t *testing.T) {
	end := now.Add(10 * 24 * time.Hour)
	lastPaid := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	failedAt := now.Add(-24 * time.Hour)
	at := func(d time.Duration) *time.Time {
		v := end.Add(d)
		return &v
	}
	activeSub := payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive}
	failure := payments.StatusDescriptor{
		SubscriptionStatus: payments.StatusNone,
		HasPaymentFailures: true,
		LastPaymentFailure: &payments.FailureDescriptor{StripeEventID: "ch_1", Date: failedAt},
	}

	cases := []struct {
		name string
		acc  db_models.Account
		desc payments.StatusDescriptor
		want []string
	}{
		{
			name: "in sync",
			acc:  db_models.Account{Status: db_models.StatusActive, PaidForCurrentMonth: true, SubscriptionEnd: &end},
			desc: payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive, CurrentPeriodEnd: &end},
		},
		{
			name: "active without payment",
			acc:  db_models.Account{Status: db_models.StatusActive},
			desc: payments.StatusDescriptor{SubscriptionStatus: payments.StatusPaymentBased, LastPaymentDate: &lastPaid},
			want: []string{"Account marked active but no active subscription/payment in Stripe (last payment: 4/1/2025)"},
		},
		{
			name: "trial with active payment",
			acc:  db_models.Account{Status: db_models.StatusTrial},
			desc: payments.StatusDescriptor{SubscriptionStatus: payments.StatusPaymentBased, PaymentBasedActive: true},
			want: []string{"Account marked trial but has active payment in Stripe"},
		},
		{
			name: "trial with subscription is not flagged as trial drift",
			acc:  db_models.Account{Status: db_models.StatusTrial},
			desc: payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusTrialing},
		},
		{
			name: "paid flag set without subscription",
			acc:  db_models.Account{Status: db_models.StatusActive, PaidForCurrentMonth: true},
			desc: payments.StatusDescriptor{SubscriptionStatus: payments.StatusPaymentBased, PaymentBasedActive: true},
			want: []string{"paidForCurrentMonth mismatch: DB=true, Stripe=false"},
		},
		{
			name: "paid flag missing with active subscription",
			acc:  db_models.Account{Status: db_models.StatusActive},
			desc: activeSub,
			want: []string{"paidForCurrentMonth mismatch: DB=false, Stripe=true"},
		},
		{
			name: "end drift of exactly one day is tolerated",
			acc:  db_models.Account{Status: db_models.StatusActive, PaidForCurrentMonth: true, SubscriptionEnd: &end},
			desc: payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive, CurrentPeriodEnd: at(24 * time.Hour)},
		},
		{
			name: "end drift past one day",
			acc:  db_models.Account{Status: db_models.StatusActive, PaidForCurrentMonth: true, SubscriptionEnd: &end},
			desc: payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive, CurrentPeriodEnd: at(24*time.Hour + time.Second)},
			want: []string{"Subscription end date mismatch: DB=2025-06-25T12:00:00Z, Stripe=2025-06-26T12:00:01Z"},
		},
		{
			name: "end drift backwards past one day",
			acc:  db_models.Account{Status: db_models.StatusActive, PaidForCurrentMonth: true, SubscriptionEnd: &end},
			desc: payments.StatusDescriptor{HasActiveSubscription: true, SubscriptionStatus: payments.StatusActive, CurrentPeriodEnd: at(-24*time.Hour - time.Second)},
			want: []string{"Subscription end date mismatch: DB=2025-06-25T12:00:00Z, Stripe=2025-06-24T11:59:59Z"},
		},
		{
			name: "unrecorded failure on an unpaused account",
			acc:  db_models.Account{Status: db_models.StatusInactive},
			desc: failure,
			want: []string{
				"Payment failures detected in Stripe but not recorded in database",
				"Account has payment failures but is not paused",
			},
		},
		{
			name: "recorded failure on a paused account",
			acc: func() db_models.Account {
				a := db_models.Account{Status: db_models.StatusPaused}
				a.LastPaymentFailure.At = &failedAt
				return a
			}(),
			desc: failure,
		},
		{
			name: "recorded failure on a suspended account",
			acc: func() db_models.Account {
				a := db_models.Account{Status: db_models.StatusSuspended}
				a.LastPaymentFailure.At = &failedAt
				return a
			}(),
			desc: failure,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := reconcile.Discrepancies(&tc.acc, tc.desc)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
