package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/repositories"
	mem "clubhouse/pkg/memcache"
	"clubhouse/pkg/utils"
)

const (
	pendingJanitorSpec = "0 */15 * * * *"
	holdJanitorSpec    = "30 */5 * * * *"
	tokenSweepSpec     = "0 */10 * * * *"
	trialWarningSpec   = "0 0 9 * * *"
	weeklySummarySpec  = "0 0 18 * * 0"

	defaultJobTimeout   = 5 * time.Minute
	reconcileJobTimeout = time.Hour
)

var trialWarningDays = []int{7, 1}

// Scheduler runs the periodic jobs. Jobs get a context that is cancelled on Stop.
type Scheduler struct {
	cron        *cron.Cron
	accountRepo repositories.AccountRepository
	pendingRepo repositories.PendingRegistrationRepository
	eventRepo   repositories.EventRepository
	rentals     RentalService
	runner      *reconcile.Runner
	notifier    NotificationService
	resetTokens mem.ResetTokenStore
	cfg         config.ReconcileConfig
	log         *zap.Logger
	now         func() time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(
	accountRepo repositories.AccountRepository,
	pendingRepo repositories.PendingRegistrationRepository,
	eventRepo repositories.EventRepository,
	rentals RentalService,
	runner *reconcile.Runner,
	notifier NotificationService,
	resetTokens mem.ResetTokenStore,
	cfg *config.Config,
	log *zap.Logger,
) *Scheduler {
	log = log.Named("scheduler")
	cronLog := cron.PrintfLogger(zap.NewStdLog(log))
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(utils.ClubLocation()),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		accountRepo: accountRepo,
		pendingRepo: pendingRepo,
		eventRepo:   eventRepo,
		rentals:     rentals,
		runner:      runner,
		notifier:    notifier,
		resetTokens: resetTokens,
		cfg:         cfg.Reconcile,
		log:         log,
		now:         time.Now,
	}
}

type scheduledJob struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(context.Context) error
}

// WithClock overrides the time source used to pick trial and event windows.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	jobs := []scheduledJob{
		{"pending-janitor", pendingJanitorSpec, defaultJobTimeout, s.countJob(s.ExpirePendingRegistrations)},
		{"hold-janitor", holdJanitorSpec, defaultJobTimeout, s.countJob(s.rentals.ExpireHolds)},
		{"reset-token-sweep", tokenSweepSpec, defaultJobTimeout, s.sweepTokens},
		{"trial-warnings", trialWarningSpec, defaultJobTimeout, s.countJob(s.SendTrialWarnings)},
		{"weekly-summary", weeklySummarySpec, defaultJobTimeout, s.countJob(s.SendWeeklySummary)},
	}
	if s.cfg.Enabled && s.cfg.Schedule != "" {
		jobs = append(jobs, scheduledJob{"reconcile", s.cfg.Schedule, reconcileJobTimeout, s.reconcile})
	}

	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.timeout, j.run)); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) wrap(name string, timeout time.Duration, run func(context.Context) error) func() {
	return func() {
		s.mu.Lock()
		base := s.ctx
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	}
}

func (s *Scheduler) countJob(fn func(context.Context) (int, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}

func (s *Scheduler) sweepTokens(context.Context) error {
	if n := s.resetTokens.Sweep(); n > 0 {
		s.log.Debug("expired reset tokens dropped", zap.Int("count", n))
	}
	return nil
}

func (s *Scheduler) reconcile(ctx context.Context) error {
	_, err := s.runner.Run(ctx, reconcile.ModeSync)
	return err
}

// ExpirePendingRegistrations deletes signups whose checkout window has passed.
func (s *Scheduler) ExpirePendingRegistrations(ctx context.Context) (int, error) {
	n, err := s.pendingRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired pending registrations: %w", err)
	}
	if n > 0 {
		s.log.Info("expired pending registrations deleted", zap.Int64("count", n))
	}
	return int(n), nil
}

func startOfDay(t time.Time) time.Time {
	t = t.In(utils.ClubLocation())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SendTrialWarnings mails trial members whose trial ends 7 days or 1 day from today, listing
// the events they can still attend before it ends.
func (s *Scheduler) SendTrialWarnings(ctx context.Context) (int, error) {
	now := s.now()
	today := startOfDay(now)
	sent := 0

	for _, days := range trialWarningDays {
		from := today.AddDate(0, 0, days)
		accounts, err := s.accountRepo.ListTrialsEndingBetween(ctx, from, from.AddDate(0, 0, 1))
		if err != nil {
			return sent, fmt.Errorf("list trials ending in %d days: %w", days, err)
		}
		for i := range accounts {
			account := &accounts[i]
			if account.Email == "" || account.TrialEnd == nil {
				continue
			}
			events, err := s.eventRepo.ListUpcoming(ctx, now, account.TrialEnd)
			if err != nil {
				return sent, fmt.Errorf("list events before trial end: %w", err)
			}
			s.notifier.TrialWarning(ctx, account, days, events)
			sent++
		}
	}
	return sent, nil
}

// SendWeeklySummary mails the coming week's events to every member still on the books.
func (s *Scheduler) SendWeeklySummary(ctx context.Context) (int, error) {
	now := s.now()
	until := now.AddDate(0, 0, 7)
	events, err := s.eventRepo.ListUpcoming(ctx, now, &until)
	if err != nil {
		return 0, fmt.Errorf("list week events: %w", err)
	}
	if len(events) == 0 {
		s.log.Info("no events this week, weekly summary skipped")
		return 0, nil
	}

	accounts, err := s.accountRepo.ListMailable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recipients: %w", err)
	}
	for i := range accounts {
		s.notifier.WeeklySummary(ctx, &accounts[i], events)
	}
	return len(accounts), nil
}
