package forum_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"clubhouse/internal/api/controllers"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
)

var Module = fx.Provide(provideForumRepo, provideForumService, provideForumController)

func provideForumRepo(db *gorm.DB) repositories.ForumRepository {
	return repositories.NewForumRepository(db)
}

func provideForumService(forumRepo repositories.ForumRepository) services.ForumService {
	return services.NewForumService(forumRepo)
}

func provideForumController(forumService services.ForumService) *controllers.ForumController {
	return controllers.NewForumController(forumService)
}
