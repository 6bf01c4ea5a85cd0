package config

import "time"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Mail      MailConfig      `mapstructure:"mail"`
	Club      ClubConfig      `mapstructure:"club"`
	Rental    RentalConfig    `mapstructure:"rental"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port    string `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
}

type StripeConfig struct {
	SecretKey      string        `mapstructure:"secret_key"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	MonthlyPriceID string        `mapstructure:"monthly_price_id"`
	AnnualPriceID  string        `mapstructure:"annual_price_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	From       string `mapstructure:"from"`
	FromName   string `mapstructure:"from_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	RequireTLS bool   `mapstructure:"require_tls"`
}

type MailConfig struct {
	AdminEmail string `mapstructure:"admin_email"`
	Enabled    bool   `mapstructure:"enabled"`
}

type ClubConfig struct {
	Name                string `mapstructure:"name"`
	FounderUsername     string `mapstructure:"founder_username"`
	AnnualAllowlistFile string `mapstructure:"annual_allowlist_file"`
	// TrialDays applies to accounts created without a paid checkout.
	TrialDays int `mapstructure:"trial_days"`
}

type RentalConfig struct {
	HoldTTL time.Duration `mapstructure:"hold_ttl"`
}

type ReconcileConfig struct {
	Workers  int    `mapstructure:"workers"`
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                "8080",
		"server.base_url":            "http://localhost:8080",
		"database.url":               "",
		"database.auto_migrate":      true,
		"auth.jwt_secret":            "",
		"auth.token_ttl":             "24h",
		"auth.reset_token_ttl":       "30m",
		"stripe.secret_key":          "",
		"stripe.webhook_secret":      "",
		"stripe.monthly_price_id":    "",
		"stripe.annual_price_id":     "",
		"stripe.timeout":             "20s",
		"smtp.host":                  "smtp.gmail.com",
		"smtp.port":                  587,
		"smtp.username":              "",
		"smtp.password":              "",
		"smtp.from":                  "",
		"smtp.from_name":             "Soda City Outdoors",
		"smtp.use_ssl":               false,
		"smtp.require_tls":           true,
		"mail.admin_email":           "",
		"mail.enabled":               true,
		"club.name":                  "Soda City Outdoors",
		"club.founder_username":      "",
		"club.annual_allowlist_file": "",
		"club.trial_days":            30,
		"rental.hold_ttl":            "30m",
		"reconcile.workers":          4,
		"reconcile.schedule":         "0 0 3 1 * *",
		"reconcile.enabled":          true,
		"redis.addr":                 "",
		"redis.password":             "",
		"redis.db":                   0,
		"tracing.otlp_endpoint":      "",
		"tracing.service_name":       "clubhouse",
		"ratelimit.per_minute":       5,
		"log.development":            false,
	}
}
