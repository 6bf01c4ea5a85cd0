package controllers_fx

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"clubhouse/internal/api"
	"clubhouse/internal/config"
	"clubhouse/pkg/middleware"
	"clubhouse/pkg/utils"
)

var Module = fx.Provide(provideLimiter, provideRouter)

func provideLimiter(cfg *config.Config) *middleware.ClientLimiter {
	return middleware.NewClientLimiter(cfg.RateLimit.PerMinute)
}

func provideRouter(ctrl api.Controllers, tokens *utils.TokenManager, limiter *middleware.ClientLimiter) *gin.Engine {
	return api.NewRouter(ctrl, tokens, limiter)
}
