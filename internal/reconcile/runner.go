package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"clubhouse/internal/infra"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/repositories"
	"clubhouse/pkg/utils"
)

const (
	syncLockName = "reconcile:sync"
	syncLockTTL  = 30 * time.Minute

	ActionSynced       = "Synced with Stripe"
	ActionClearedStale = "Cleared invalid Stripe ID and marked inactive"
)

var tracer = otel.Tracer("clubhouse/reconcile")

// ReportMailer delivers rendered reports to the administrators.
type ReportMailer interface {
	SendAdminReport(ctx context.Context, subject, html string)
}

type Runner struct {
	accounts repositories.AccountRepository
	failures repositories.PaymentFailureRepository
	runs     repositories.ReconcileRunRepository
	gateway  payments.Gateway
	resolver *payments.Resolver
	mailer   ReportMailer
	locker   infra.Locker
	workers  int
	log      *zap.Logger
	now      func() time.Time
}

func NewRunner(
	accounts repositories.AccountRepository,
	failures repositories.PaymentFailureRepository,
	runs repositories.ReconcileRunRepository,
	gateway payments.Gateway,
	resolver *payments.Resolver,
	mailer ReportMailer,
	locker infra.Locker,
	workers int,
	log *zap.Logger,
) *Runner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		accounts: accounts,
		failures: failures,
		runs:     runs,
		gateway:  gateway,
		resolver: resolver,
		mailer:   mailer,
		locker:   locker,
		workers:  workers,
		log:      log,
		now:      time.Now,
	}
}

func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunResult holds the reports of one run; Sync and Final are nil in analyze mode or when
// the first analysis found nothing to repair.
type RunResult struct {
	Initial *Report     `json:"initial"`
	Sync    *SyncResult `json:"sync,omitempty"`
	Final   *Report     `json:"final,omitempty"`
}

// Analyze compares every account with the processor without writing anything.
func (r *Runner) Analyze(ctx context.Context) (*Report, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Analyze")
	defer span.End()

	customers, err := r.gateway.ListAllCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	byID := make(map[string]payments.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	accounts, err := r.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })

	report := &Report{
		GeneratedAt:        r.now(),
		TotalAccounts:      len(accounts),
		TotalCustomers:     len(customers),
		Matched:            []AccountReport{},
		UnmatchedAccounts:  []UnmatchedAccount{},
		UnmatchedCustomers: []UnmatchedCustomer{},
		ResolverErrors:     []ResolverError{},
		Recommendations:    []string{},
	}

	var matched []*db_models.Account
	referenced := map[string]bool{}
	for i := range accounts {
		acc := &accounts[i]
		if acc.StripeCustomerID == "" {
			report.UnmatchedAccounts = append(report.UnmatchedAccounts, UnmatchedAccount{
				AccountID: acc.ID, Username: acc.Username, Email: acc.Email, Reason: ReasonNoCustomerID,
			})
			continue
		}
		referenced[acc.StripeCustomerID] = true
		if _, ok := byID[acc.StripeCustomerID]; !ok {
			report.UnmatchedAccounts = append(report.UnmatchedAccounts, UnmatchedAccount{
				AccountID: acc.ID, Username: acc.Username, Email: acc.Email,
				CustomerID: acc.StripeCustomerID, Reason: ReasonCustomerNotFound,
			})
			continue
		}
		matched = append(matched, acc)
	}

	// each worker touches only its own slot, so results keep the username order
	descs := make([]payments.StatusDescriptor, len(matched))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, acc := range matched {
		i, customerID := i, acc.StripeCustomerID
		g.Go(func() error {
			descs[i] = r.resolver.Resolve(gctx, customerID)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, acc := range matched {
		desc := descs[i]
		if desc.Unknown() {
			report.ResolverErrors = append(report.ResolverErrors, ResolverError{
				Username: acc.Username, CustomerID: acc.StripeCustomerID, Error: desc.Error,
			})
			continue
		}
		discrepancies := Discrepancies(acc, desc)
		if discrepancies == nil {
			discrepancies = []string{}
		}
		report.Matched = append(report.Matched, AccountReport{
			AccountID:         acc.ID,
			Username:          acc.Username,
			Email:             acc.Email,
			CustomerID:        acc.StripeCustomerID,
			DBStatus:          acc.Status,
			DBPaid:            acc.PaidForCurrentMonth,
			DBSubscriptionEnd: acc.SubscriptionEnd,
			Stripe:            desc,
			Discrepancies:     discrepancies,
		})
	}

	for _, c := range customers {
		if !referenced[c.ID] {
			report.UnmatchedCustomers = append(report.UnmatchedCustomers, UnmatchedCustomer{
				CustomerID: c.ID, Email: c.Email, Name: c.Name,
			})
		}
	}
	sort.Slice(report.UnmatchedCustomers, func(i, j int) bool {
		return report.UnmatchedCustomers[i].CustomerID < report.UnmatchedCustomers[j].CustomerID
	})

	if len(report.Discrepant()) > 0 {
		report.Recommendations = append(report.Recommendations, RecommendFixDiscrepancy)
	}
	if len(report.UnmatchedCustomers) > 0 {
		report.Recommendations = append(report.Recommendations, RecommendReviewCustomer)
	}
	if len(report.UnmatchedAccounts) > 0 {
		report.Recommendations = append(report.Recommendations, RecommendReviewAccounts)
	}

	span.SetAttributes(
		attribute.Int("reconcile.accounts", report.TotalAccounts),
		attribute.Int("reconcile.discrepant", len(report.Discrepant())),
	)
	return report, nil
}

// Sync repairs the accounts a report flagged. Per-account failures are collected, not returned.
func (r *Runner) Sync(ctx context.Context, report *Report) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Sync")
	defer span.End()

	ctx = repositories.WithAuditActor(ctx, repositories.AuditActor{ModifiedBy: "reconcile"})
	result := &SyncResult{Entries: []SyncEntry{}, Errors: []string{}}
	now := r.now()

	for _, item := range report.Discrepant() {
		result.Processed++
		entry, err := r.syncAccount(ctx, item, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Error updating %s: %v", item.Email, err))
			r.log.Error("sync account", zap.String("username", item.Username), zap.Error(err))
			continue
		}
		if entry != nil {
			result.Updated++
			result.Entries = append(result.Entries, *entry)
		}
	}

	for _, u := range report.UnmatchedAccounts {
		if u.CustomerID == "" {
			continue
		}
		result.Processed++
		acc, err := r.accounts.FindById(ctx, u.AccountID)
		if err != nil || acc == nil {
			if err == nil {
				err = utils.ErrAccountNotFound
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Error processing unmatched account %s: %v", u.Email, err))
			continue
		}
		status := db_models.StatusInactive
		if acc.Status == db_models.StatusSuspended {
			status = db_models.StatusSuspended
		}
		err = r.accounts.UpdateFields(ctx, acc.ID, map[string]interface{}{
			"stripe_customer_id":     "",
			"status":                 status,
			"paid_for_current_month": false,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Error processing unmatched account %s: %v", u.Email, err))
			continue
		}
		result.Updated++
		result.Entries = append(result.Entries, SyncEntry{
			AccountID: acc.ID,
			Username:  acc.Username,
			Email:     acc.Email,
			Action:    ActionClearedStale,
			OldStatus: acc.Status,
			NewStatus: status,
			OldPaid:   acc.PaidForCurrentMonth,
			NewPaid:   false,
		})
	}

	span.SetAttributes(attribute.Int("reconcile.updated", result.Updated))
	return result, nil
}

func (r *Runner) syncAccount(ctx context.Context, item AccountReport, now time.Time) (*SyncEntry, error) {
	acc, err := r.accounts.FindById(ctx, item.AccountID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, utils.ErrAccountNotFound
	}

	target := TargetFor(acc, item.Stripe, now)

	newFailure := false
	if target.Failure != nil {
		exists, err := r.failures.Exists(ctx, acc.ID, target.Failure.StripeEventID)
		if err != nil {
			return nil, err
		}
		newFailure = !exists
	}

	if !target.Differs(acc, newFailure) {
		r.log.Debug("no changes needed", zap.String("username", acc.Username))
		return nil, nil
	}

	changes := map[string]interface{}{
		"status":                 target.Status,
		"paid_for_current_month": target.Paid,
	}
	if target.SubscriptionEnd != nil {
		changes["subscription_end"] = *target.SubscriptionEnd
	}
	if f := target.Failure; f != nil {
		if newFailure {
			if _, err := r.failures.Record(ctx, &db_models.PaymentFailure{
				AccountID:     acc.ID,
				StripeEventID: f.StripeEventID,
				OccurredAt:    f.Date,
				Reason:        f.Reason,
				Amount:        f.Amount,
				Source:        "reconcile",
			}); err != nil {
				return nil, err
			}
		}
		changes["last_failure_at"] = f.Date
		changes["last_failure_reason"] = f.Reason
		changes["last_failure_stripe_event_id"] = f.StripeEventID
		changes["last_failure_amount"] = f.Amount
		changes["last_failure_attempts"] = acc.LastPaymentFailure.Attempts + 1
		if target.Status == db_models.StatusPaused {
			changes["account_pause_reason"] = PauseReasonPaymentFailure
			changes["account_paused_at"] = now
		}
	}

	if err := r.accounts.UpdateFields(ctx, acc.ID, changes); err != nil {
		return nil, err
	}

	r.log.Info("account synced",
		zap.String("username", acc.Username),
		zap.String("from", string(acc.Status)),
		zap.String("to", string(target.Status)))

	return &SyncEntry{
		AccountID:          acc.ID,
		Username:           acc.Username,
		Email:              acc.Email,
		Action:             ActionSynced,
		OldStatus:          acc.Status,
		NewStatus:          target.Status,
		OldPaid:            acc.PaidForCurrentMonth,
		NewPaid:            target.Paid,
		OldSubscriptionEnd: acc.SubscriptionEnd,
		NewSubscriptionEnd: target.SubscriptionEnd,
	}, nil
}

// Run performs a full pass. In sync mode it holds the single-flight lock for the whole pass.
func (r *Runner) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown reconcile mode %q", utils.ErrInvalidInput, mode)
	}

	if mode == ModeSync {
		release, err := r.locker.Acquire(ctx, syncLockName, syncLockTTL)
		if err != nil {
			if errors.Is(err, infra.ErrLockHeld) {
				return nil, fmt.Errorf("%w: %v", utils.ErrReconcileInProgress, err)
			}
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.log.Warn("release reconcile lock", zap.Error(err))
			}
		}()
	}

	r.log.Info("reconciliation started", zap.String("mode", string(mode)))

	initial, err := r.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	r.record(ctx, mode, "analysis", initial, 0)
	r.mailAnalysis(ctx, "Stripe Sync Analysis Report", initial)

	result := &RunResult{Initial: initial}
	if mode == ModeAnalyze {
		return result, nil
	}

	if len(initial.Discrepant()) == 0 && !hasStaleCustomerIDs(initial) {
		r.log.Info("no discrepancies found; database already in sync")
		return result, nil
	}

	synced, err := r.Sync(ctx, initial)
	if err != nil {
		return result, err
	}
	result.Sync = synced
	r.record(ctx, mode, "sync", nil, synced.Updated)
	if html, err := SyncHTML("Stripe Sync Results", synced); err == nil {
		r.sendReport(ctx, "Stripe Sync Results", html)
	} else {
		r.log.Error("render sync report", zap.Error(err))
	}

	final, err := r.Analyze(ctx)
	if err != nil {
		return result, err
	}
	result.Final = final
	r.record(ctx, mode, "final", final, synced.Updated)
	r.mailAnalysis(ctx, "Stripe Sync Final Analysis", final)

	r.log.Info("reconciliation finished",
		zap.Int("updated", synced.Updated),
		zap.Int("remaining_discrepancies", len(final.Discrepant())))
	return result, nil
}

func hasStaleCustomerIDs(r *Report) bool {
	for _, u := range r.UnmatchedAccounts {
		if u.CustomerID != "" {
			return true
		}
	}
	return false
}

func (r *Runner) mailAnalysis(ctx context.Context, subject string, report *Report) {
	html, err := AnalysisHTML(subject, report)
	if err != nil {
		r.log.Error("render analysis report", zap.Error(err))
		return
	}
	r.sendReport(ctx, subject, html)
}

func (r *Runner) sendReport(ctx context.Context, subject, html string) {
	if r.mailer == nil {
		return
	}
	r.mailer.SendAdminReport(ctx, subject, html)
}

func (r *Runner) record(ctx context.Context, mode Mode, phase string, report *Report, updated int) {
	if r.runs == nil {
		return
	}
	run := &db_models.ReconcileRun{Mode: string(mode), Phase: phase, Updated: updated}
	if report != nil {
		run.Accounts = report.TotalAccounts
		run.Discrepancies = len(report.Discrepant())
		run.Unmatched = len(report.UnmatchedAccounts)
		if raw, err := report.JSON(); err == nil {
			run.Report = datatypes.JSON(raw)
		}
	}
	if err := r.runs.Record(ctx, run); err != nil {
		r.log.Warn("record reconcile run", zap.String("phase", phase), zap.Error(err))
	}
}
