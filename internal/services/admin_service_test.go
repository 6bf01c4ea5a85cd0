package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/infra"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/payments/paymentstest"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

func (e *env) adminService() services.AdminService {
	resolver := payments.NewResolver(e.gateway, nil, e.log)
	runner := reconcile.NewRunner(e.accounts, e.failures, e.runs, e.gateway, resolver, e.notifier,
		infra.NewLocalLocker(), e.cfg.Reconcile.Workers, e.log)
	return services.NewAdminService(e.accounts, e.failures, e.audits, e.reservations, e.runs, runner, e.log)
}

func TestAdmin_PauseSuspendReinstate(t *testing.T) {
	e := newEnv(t)
	acc := e.member(t, "bob", "cus_1")
	svc := e.adminService()

	require.NoError(t, svc.Pause(context.Background(), acc.ID, ""))
	got := e.reload(t, acc.ID)
	assert.Equal(t, db_models.StatusPaused, got.Status)
	assert.Equal(t, "Paused by administrator", got.AccountPauseReason)
	assert.NotNil(t, got.AccountPausedAt)

	require.NoError(t, svc.Suspend(context.Background(), acc.ID, "chargeback"))
	got = e.reload(t, acc.ID)
	assert.Equal(t, db_models.StatusSuspended, got.Status)
	assert.Equal(t, "chargeback", got.AccountPauseReason)

	require.NoError(t, svc.Reinstate(context.Background(), acc.ID))
	got = e.reload(t, acc.ID)
	assert.Equal(t, db_models.StatusActive, got.Status)
	assert.Empty(t, got.AccountPauseReason)
	assert.Nil(t, got.AccountPausedAt)

	require.NoError(t, svc.SetNotes(context.Background(), acc.ID, "called 4/2"))
	assert.Equal(t, "called 4/2", e.reload(t, acc.ID).AdminNotes)
}

func TestAdmin_PaymentIssuesAndDetail(t *testing.T) {
	e := newEnv(t)
	e.member(t, "fine", "cus_1")
	bad := e.member(t, "bad", "cus_2")

	payload := paymentstest.EventPayload("evt_1", "charge.failed", map[string]interface{}{
		"id": "ch_1", "customer": "cus_2", "amount": 1500, "failure_message": "Insufficient funds",
	})
	_, err := e.webhookService().Handle(context.Background(), payload, "sig")
	require.NoError(t, err)

	svc := e.adminService()
	issues, err := svc.PaymentIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "bad", issues[0].Username)

	detail, err := svc.AccountDetail(context.Background(), bad.ID)
	require.NoError(t, err)
	require.Len(t, detail.PaymentFailures, 1)
	assert.Equal(t, "ch_1", detail.PaymentFailures[0].StripeEventID)
	assert.Equal(t, "cus_2", detail.StripeCustomerID)

	_, err = svc.AccountDetail(context.Background(), uuid.New())
	assert.ErrorIs(t, err, utils.ErrAccountNotFound)

	stats, err := svc.PaymentStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalAccounts)
	assert.EqualValues(t, 1, stats.WithFailures)
	require.Len(t, stats.FailureReasons, 1)
	assert.Equal(t, "Insufficient funds", stats.FailureReasons[0].Reason)
}

func TestAdmin_Reconcile(t *testing.T) {
	e := newEnv(t)
	e.member(t, "bob", "")
	svc := e.adminService()

	_, err := svc.Reconcile(context.Background(), reconcile.Mode("repair"))
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	res, err := svc.Reconcile(context.Background(), reconcile.ModeAnalyze)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Initial.TotalAccounts)
	require.Len(t, res.Initial.UnmatchedAccounts, 1)
	assert.Nil(t, res.Sync)

	runs, err := svc.RecentRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
