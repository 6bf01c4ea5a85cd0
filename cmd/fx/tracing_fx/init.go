package tracing_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/infra"
)

var Module = fx.Invoke(startTracing)

func startTracing(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	shutdown, err := infra.InitTracing(context.Background(), cfg.Tracing)
	if err != nil {
		return err
	}
	if cfg.Tracing.OTLPEndpoint != "" {
		log.Info("tracing enabled", zap.String("endpoint", cfg.Tracing.OTLPEndpoint))
	}

	lc.Append(fx.Hook{
		OnStop: shutdown,
	})
	return nil
}
