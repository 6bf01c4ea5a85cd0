package payment_service_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clubhouse/internal/api/controllers"
	"clubhouse/internal/config"
	"clubhouse/internal/payments"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
)

var Module = fx.Provide(
	provideGateway, provideResolver, provideFailureRepo,
	providePaymentService, provideWebhookService, providePaymentController,
)

func provideGateway(cfg *config.Config, log *zap.Logger) payments.Gateway {
	if cfg.Stripe.SecretKey == "" {
		log.Warn("stripe secret key is empty, payment calls will fail")
	}
	return payments.NewStripeGateway(cfg.Stripe)
}

func provideResolver(gateway payments.Gateway, allowlist *config.AnnualAllowlist, log *zap.Logger) *payments.Resolver {
	return payments.NewResolver(gateway, allowlist, log)
}

func provideFailureRepo(db *gorm.DB) repositories.PaymentFailureRepository {
	return repositories.NewPaymentFailureRepository(db)
}

func providePaymentService(
	pendingRepo repositories.PendingRegistrationRepository,
	gateway payments.Gateway,
	cfg *config.Config,
	log *zap.Logger,
) services.PaymentService {
	return services.NewPaymentService(pendingRepo, gateway, cfg, log)
}

func provideWebhookService(
	accountRepo repositories.AccountRepository,
	pendingRepo repositories.PendingRegistrationRepository,
	failureRepo repositories.PaymentFailureRepository,
	reservationRepo repositories.ReservationRepository,
	catalogRepo repositories.RentalCatalogRepository,
	gateway payments.Gateway,
	notifier services.NotificationService,
	cfg *config.Config,
	log *zap.Logger,
) services.WebhookService {
	return services.NewWebhookService(accountRepo, pendingRepo, failureRepo, reservationRepo, catalogRepo, gateway, notifier, cfg, log)
}

func providePaymentController(paymentService services.PaymentService, webhookService services.WebhookService) *controllers.PaymentController {
	return controllers.NewPaymentController(paymentService, webhookService)
}
