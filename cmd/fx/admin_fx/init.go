package admin_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clubhouse/internal/api/controllers"
	"clubhouse/internal/config"
	"clubhouse/internal/infra"
	"clubhouse/internal/payments"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
)

var Module = fx.Provide(
	provideAuditRepo, provideRunRepo, provideLocker, provideRunner,
	provideAdminService, provideAdminController,
)

func provideAuditRepo(db *gorm.DB) repositories.WaiverAuditRepository {
	return repositories.NewWaiverAuditRepository(db)
}

func provideRunRepo(db *gorm.DB) repositories.ReconcileRunRepository {
	return repositories.NewReconcileRunRepository(db)
}

// provideLocker shares the reconcile lock across replicas when redis is configured.
func provideLocker(cfg *config.Config, log *zap.Logger) infra.Locker {
	rdb := infra.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if rdb == nil {
		log.Info("redis not configured, reconcile lock is process-local")
	}
	return infra.NewLocker(rdb)
}

func provideRunner(
	accountRepo repositories.AccountRepository,
	failureRepo repositories.PaymentFailureRepository,
	runRepo repositories.ReconcileRunRepository,
	gateway payments.Gateway,
	resolver *payments.Resolver,
	notifier services.NotificationService,
	locker infra.Locker,
	cfg *config.Config,
	log *zap.Logger,
) *reconcile.Runner {
	return reconcile.NewRunner(accountRepo, failureRepo, runRepo, gateway, resolver, notifier, locker, cfg.Reconcile.Workers, log.Named("reconcile"))
}

func provideAdminService(
	accountRepo repositories.AccountRepository,
	failureRepo repositories.PaymentFailureRepository,
	auditRepo repositories.WaiverAuditRepository,
	reservationRepo repositories.ReservationRepository,
	runRepo repositories.ReconcileRunRepository,
	runner *reconcile.Runner,
	log *zap.Logger,
) services.AdminService {
	return services.NewAdminService(accountRepo, failureRepo, auditRepo, reservationRepo, runRepo, runner, log)
}

func provideAdminController(adminService services.AdminService) *controllers.AdminController {
	return controllers.NewAdminController(adminService)
}
