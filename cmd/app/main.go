package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"clubhouse/cmd/fx/account_fx"
	"clubhouse/cmd/fx/admin_fx"
	"clubhouse/cmd/fx/config_fx"
	"clubhouse/cmd/fx/controllers_fx"
	"clubhouse/cmd/fx/db_fx"
	"clubhouse/cmd/fx/event_fx"
	"clubhouse/cmd/fx/forum_fx"
	"clubhouse/cmd/fx/logger_fx"
	"clubhouse/cmd/fx/mail_fx"
	"clubhouse/cmd/fx/memcache_fx"
	"clubhouse/cmd/fx/payment_service_fx"
	"clubhouse/cmd/fx/rental_fx"
	"clubhouse/cmd/fx/scheduler_fx"
	"clubhouse/cmd/fx/tracing_fx"
	"clubhouse/internal/config"
)

func main() {
	app := fx.New(
		config_fx.Module,
		logger_fx.Module,
		tracing_fx.Module,
		db_fx.Module,
		memcache_fx.Module,
		mail_fx.Module,
		account_fx.Module,
		payment_service_fx.Module,
		rental_fx.Module,
		event_fx.Module,
		forum_fx.Module,
		admin_fx.Module,
		scheduler_fx.Module,
		controllers_fx.Module,

		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine, cfg *config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				log.Info("starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}
