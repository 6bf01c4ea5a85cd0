package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/models/response_models"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/repositories"
	"clubhouse/pkg/utils"
)

const (
	reconcileRequestTimeout = 10 * time.Minute
	recentRunsLimit         = 20
)

type AdminService interface {
	PaymentIssues(ctx context.Context) ([]response_models.AdminAccountResponse, error)
	AccountDetail(ctx context.Context, id uuid.UUID) (*response_models.AdminAccountResponse, error)
	Pause(ctx context.Context, id uuid.UUID, reason string) error
	Suspend(ctx context.Context, id uuid.UUID, reason string) error
	Reinstate(ctx context.Context, id uuid.UUID) error
	SetNotes(ctx context.Context, id uuid.UUID, notes string) error
	PaymentStats(ctx context.Context) (*response_models.PaymentStatsResponse, error)
	Reconcile(ctx context.Context, mode reconcile.Mode) (*reconcile.RunResult, error)
	RecentRuns(ctx context.Context) ([]db_models.ReconcileRun, error)
}

type adminService struct {
	accountRepo     repositories.AccountRepository
	failureRepo     repositories.PaymentFailureRepository
	auditRepo       repositories.WaiverAuditRepository
	reservationRepo repositories.ReservationRepository
	runRepo         repositories.ReconcileRunRepository
	runner          *reconcile.Runner
	log             *zap.Logger
}

func NewAdminService(
	accountRepo repositories.AccountRepository,
	failureRepo repositories.PaymentFailureRepository,
	auditRepo repositories.WaiverAuditRepository,
	reservationRepo repositories.ReservationRepository,
	runRepo repositories.ReconcileRunRepository,
	runner *reconcile.Runner,
	log *zap.Logger,
) AdminService {
	return &adminService{
		accountRepo:     accountRepo,
		failureRepo:     failureRepo,
		auditRepo:       auditRepo,
		reservationRepo: reservationRepo,
		runRepo:         runRepo,
		runner:          runner,
		log:             log.Named("admin"),
	}
}

func (a *adminService) PaymentIssues(ctx context.Context) ([]response_models.AdminAccountResponse, error) {
	accounts, err := a.accountRepo.ListPaymentIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment issues: %w", utils.ErrDatabaseError)
	}
	out := make([]response_models.AdminAccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, response_models.NewAdminAccountResponse(&accounts[i], nil))
	}
	return out, nil
}

func (a *adminService) AccountDetail(ctx context.Context, id uuid.UUID) (*response_models.AdminAccountResponse, error) {
	account, err := a.accountRepo.FindById(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", utils.ErrDatabaseError)
	}
	if account == nil {
		return nil, utils.ErrAccountNotFound
	}

	failures, err := a.failureRepo.ListByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", utils.ErrDatabaseError)
	}
	audits, err := a.auditRepo.ListByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list waiver audits: %w", utils.ErrDatabaseError)
	}
	reservations, err := a.reservationRepo.ListByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", utils.ErrDatabaseError)
	}

	resp := response_models.NewAdminAccountResponse(account, failures)
	resp.WaiverAudits = audits
	resp.Reservations = reservations
	return &resp, nil
}

func (a *adminService) setStatus(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	if err := a.accountRepo.UpdateFields(ctx, id, changes); err != nil {
		return err
	}
	a.log.Info("account status changed",
		zap.String("account_id", id.String()),
		zap.Any("status", changes["status"]),
		zap.String("trace_id", utils.TraceIDFromContext(ctx)),
	)
	return nil
}

func (a *adminService) Pause(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		reason = "Paused by administrator"
	}
	return a.setStatus(ctx, id, map[string]interface{}{
		"status":               db_models.StatusPaused,
		"account_pause_reason": reason,
		"account_paused_at":    time.Now(),
	})
}

func (a *adminService) Suspend(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		reason = "Suspended by administrator"
	}
	return a.setStatus(ctx, id, map[string]interface{}{
		"status":               db_models.StatusSuspended,
		"account_pause_reason": reason,
		"account_paused_at":    time.Now(),
	})
}

func (a *adminService) Reinstate(ctx context.Context, id uuid.UUID) error {
	return a.setStatus(ctx, id, map[string]interface{}{
		"status":               db_models.StatusActive,
		"account_pause_reason": "",
		"account_paused_at":    nil,
	})
}

func (a *adminService) SetNotes(ctx context.Context, id uuid.UUID, notes string) error {
	return a.accountRepo.UpdateFields(ctx, id, map[string]interface{}{"admin_notes": notes})
}

func (a *adminService) PaymentStats(ctx context.Context) (*response_models.PaymentStatsResponse, error) {
	byStatus, err := a.accountRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", utils.ErrDatabaseError)
	}
	reasons, err := a.accountRepo.FailureReasonStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failure reasons: %w", utils.ErrDatabaseError)
	}

	resp := &response_models.PaymentStatsResponse{ByStatus: byStatus, FailureReasons: reasons}
	for _, s := range byStatus {
		resp.TotalAccounts += s.Count
	}
	for _, r := range reasons {
		resp.WithFailures += r.Count
	}
	return resp, nil
}

// Reconcile outlives the HTTP request that started it.
func (a *adminService) Reconcile(ctx context.Context, mode reconcile.Mode) (*reconcile.RunResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("mode %q: %w", mode, utils.ErrInvalidInput)
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileRequestTimeout)
	defer cancel()
	return a.runner.Run(runCtx, mode)
}

func (a *adminService) RecentRuns(ctx context.Context) ([]db_models.ReconcileRun, error) {
	runs, err := a.runRepo.ListRecent(ctx, recentRunsLimit)
	if err != nil {
		return nil, fmt.Errorf("list reconcile runs: %w", utils.ErrDatabaseError)
	}
	return runs, nil
}
