package mail_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/services"
)

var Module = fx.Provide(provideMailService, provideNotificationService)

func provideMailService(cfg *config.Config, log *zap.Logger) services.IMailService {
	if cfg.SMTP.Password == "" {
		log.Warn("smtp password is empty, outgoing mail will likely be rejected",
			zap.String("host", cfg.SMTP.Host))
	}
	return services.NewSMTPMailService(cfg.SMTP, cfg.Club.Name)
}

// provideNotificationService drains in-flight mail before the process exits.
func provideNotificationService(lc fx.Lifecycle, mail services.IMailService, cfg *config.Config, log *zap.Logger) services.NotificationService {
	notifier := services.NewNotificationService(mail, cfg, log)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			notifier.Wait()
			return nil
		},
	})
	return notifier
}
