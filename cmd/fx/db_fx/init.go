package db_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clubhouse/internal/config"
	"clubhouse/internal/infra"
	"clubhouse/internal/repositories"
)

var Module = fx.Provide(provideDB)

// provideDB opens the database with the account guard installed before any repository sees it.
func provideDB(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := infra.InitPostgresql(cfg, log)
	if err != nil {
		return nil, err
	}

	guard := repositories.NewAccountGuard(cfg.Club.FounderUsername, log)
	if err := repositories.UseAccountGuard(db, guard); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			infra.ClosePostgresql(db, log)
			return nil
		},
	})
	return db, nil
}
