package event_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clubhouse/internal/api/controllers"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
)

var Module = fx.Provide(provideEventRepo, provideEventService, provideEventController)

func provideEventRepo(db *gorm.DB) repositories.EventRepository {
	return repositories.NewEventRepository(db)
}

func provideEventService(eventRepo repositories.EventRepository, notifier services.NotificationService, log *zap.Logger) services.EventService {
	return services.NewEventService(eventRepo, notifier, log)
}

func provideEventController(eventService services.EventService) *controllers.EventController {
	return controllers.NewEventController(eventService)
}
