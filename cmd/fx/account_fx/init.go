package account_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clubhouse/internal/api/controllers"
	"clubhouse/internal/config"
	"clubhouse/internal/payments"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
	mem "clubhouse/pkg/memcache"
	"clubhouse/pkg/utils"
)

var Module = fx.Provide(
	provideAccountRepo, providePendingRepo, provideTokenManager,
	provideAccountService, provideAccountController)

func provideAccountRepo(db *gorm.DB) repositories.AccountRepository {
	return repositories.NewAccountRepository(db)
}

func providePendingRepo(db *gorm.DB) repositories.PendingRegistrationRepository {
	return repositories.NewPendingRegistrationRepository(db)
}

func provideTokenManager(cfg *config.Config) *utils.TokenManager {
	return utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

func provideAccountService(
	accountRepo repositories.AccountRepository,
	pendingRepo repositories.PendingRegistrationRepository,
	gateway payments.Gateway,
	notifier services.NotificationService,
	resetTokens mem.ResetTokenStore,
	tokens *utils.TokenManager,
	cfg *config.Config,
	log *zap.Logger,
) services.AccountServiceInterface {
	return services.NewAccountService(accountRepo, pendingRepo, gateway, notifier, resetTokens, tokens, cfg, log)
}

func provideAccountController(accountService services.AccountServiceInterface) *controllers.AccountController {
	return controllers.NewAccountController(accountService)
}
