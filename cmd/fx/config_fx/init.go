package config_fx

import (
	"os"

	"go.uber.org/fx"

	"clubhouse/internal/config"
)

// ConfigPathEnv points at an optional YAML config file.
const ConfigPathEnv = "CLUB_CONFIG"

var Module = fx.Provide(provideConfig, provideAnnualAllowlist)

func provideConfig() (*config.Config, error) {
	return config.Load(os.Getenv(ConfigPathEnv))
}

func provideAnnualAllowlist(cfg *config.Config) (*config.AnnualAllowlist, error) {
	return config.LoadAnnualAllowlist(cfg.Club.AnnualAllowlistFile)
}
