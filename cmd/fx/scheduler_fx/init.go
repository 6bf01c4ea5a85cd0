package scheduler_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
	mem "clubhouse/pkg/memcache"
)

var Module = fx.Options(
	fx.Provide(provideScheduler),
	fx.Invoke(runScheduler),
)

func provideScheduler(
	accountRepo repositories.AccountRepository,
	pendingRepo repositories.PendingRegistrationRepository,
	eventRepo repositories.EventRepository,
	rentals services.RentalService,
	runner *reconcile.Runner,
	notifier services.NotificationService,
	resetTokens mem.ResetTokenStore,
	cfg *config.Config,
	log *zap.Logger,
) *services.Scheduler {
	return services.NewScheduler(accountRepo, pendingRepo, eventRepo, rentals, runner, notifier, resetTokens, cfg, log)
}

func runScheduler(lc fx.Lifecycle, scheduler *services.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
