package rental_fx

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
	provideCatalogRepo, provideReservationRepo, provideRentalService, provideRentalController)

func provideCatalogRepo(db *gorm.DB) repositories.RentalCatalogRepository {
	return repositories.NewRentalCatalogRepository(db)
}

func provideReservationRepo(db *gorm.DB) repositories.ReservationRepository {
	return repositories.NewReservationRepository(db)
}

func provideRentalService(
	catalogRepo repositories.RentalCatalogRepository,
	reservationRepo repositories.ReservationRepository,
	gateway payments.Gateway,
	notifier services.NotificationService,
	cfg *config.Config,
	log *zap.Logger,
) services.RentalService {
	return services.NewRentalService(catalogRepo, reservationRepo, gateway, notifier, cfg, log)
}

func provideRentalController(rentalService services.RentalService) *controllers.RentalController {
	return controllers.NewRentalController(rentalService)
}
