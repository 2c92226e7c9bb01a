package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string   `mapstructure:"BODY_LIMIT"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	FetchTimeout   time.Duration `mapstructure:"FETCH_TIMEOUT"`
	CreateTimeout  time.Duration `mapstructure:"CREATE_TIMEOUT"`

	CalendarProvider      string `mapstructure:"CALENDAR_PROVIDER"`
	GoogleCredentialsFile string `mapstructure:"GOOGLE_CREDENTIALS_FILE"`
	ICSFeeds              string `mapstructure:"ICS_FEEDS"`
	ICSDefaultTZ          string `mapstructure:"ICS_DEFAULT_TZ"`
	CalendarFetchAttempts int    `mapstructure:"CALENDAR_FETCH_ATTEMPTS"`

	BookingGuardTTL    time.Duration `mapstructure:"BOOKING_GUARD_TTL"`
	BookingHorizonDays int           `mapstructure:"BOOKING_HORIZON_DAYS"`
	BookingStepMinutes int           `mapstructure:"BOOKING_STEP_MINUTES"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	"REQUEST_TIMEOUT", "FETCH_TIMEOUT", "CREATE_TIMEOUT",
	"CALENDAR_PROVIDER", "GOOGLE_CREDENTIALS_FILE", "ICS_FEEDS", "ICS_DEFAULT_TZ",
	"CALENDAR_FETCH_ATTEMPTS", "BOOKING_GUARD_TTL", "BOOKING_HORIZON_DAYS",
	"BOOKING_STEP_MINUTES",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("FETCH_TIMEOUT", "5s")
	v.SetDefault("CREATE_TIMEOUT", "10s")
	v.SetDefault("CALENDAR_PROVIDER", "memory")
	v.SetDefault("ICS_DEFAULT_TZ", "UTC")
	v.SetDefault("CALENDAR_FETCH_ATTEMPTS", 3)
	v.SetDefault("BOOKING_GUARD_TTL", "15m")
	v.SetDefault("BOOKING_HORIZON_DAYS", 60)
	v.SetDefault("BOOKING_STEP_MINUTES", 15)

	// Unmarshal only sees env vars that are bound explicitly.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthEnabled reports whether owner endpoints verify bearer tokens. Outside
// development they always do.
func (c *Config) AuthEnabled() bool {
	return !c.IsDev() || c.AuthIssuer != "" || c.AuthSigningKey != "" || c.AuthJWKSURL != ""
}

// BookingHorizon is the furthest ahead a guest may list times.
func (c *Config) BookingHorizon() time.Duration {
	return time.Duration(c.BookingHorizonDays) * 24 * time.Hour
}

func (c *Config) BookingStep() time.Duration {
	return time.Duration(c.BookingStepMinutes) * time.Minute
}

// Validate rejects configurations that are unsafe or cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.AuthEnabled() && c.AuthIssuer == "" && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		errs = append(errs, fmt.Errorf("one of AUTH_ISSUER, AUTH_JWKS_URL or AUTH_SIGNING_KEY is required when ENV=%q", c.Env))
	}
	if c.IsProduction() && c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		errs = append(errs, errors.New("AUTH_SIGNING_KEY must be at least 32 bytes in production"))
	}

	switch c.CalendarProvider {
	case "memory":
		if c.IsProduction() {
			errs = append(errs, errors.New("CALENDAR_PROVIDER=memory is not allowed in production"))
		}
	case "google":
		if c.GoogleCredentialsFile == "" {
			errs = append(errs, errors.New("GOOGLE_CREDENTIALS_FILE is required when CALENDAR_PROVIDER is \"google\""))
		}
	default:
		errs = append(errs, fmt.Errorf("CALENDAR_PROVIDER must be \"memory\" or \"google\", got %q", c.CalendarProvider))
	}

	if _, err := time.LoadLocation(c.ICSDefaultTZ); err != nil {
		errs = append(errs, fmt.Errorf("ICS_DEFAULT_TZ: %w", err))
	}

	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":   c.RequestTimeout,
		"FETCH_TIMEOUT":     c.FetchTimeout,
		"CREATE_TIMEOUT":    c.CreateTimeout,
		"BOOKING_GUARD_TTL": c.BookingGuardTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.BookingGuardTTL > 0 && c.BookingGuardTTL < c.CreateTimeout {
		errs = append(errs, errors.New("BOOKING_GUARD_TTL must not be shorter than CREATE_TIMEOUT"))
	}
	if c.CalendarFetchAttempts < 1 {
		errs = append(errs, errors.New("CALENDAR_FETCH_ATTEMPTS must be at least 1"))
	}
	if c.BookingHorizonDays < 1 {
		errs = append(errs, errors.New("BOOKING_HORIZON_DAYS must be at least 1"))
	}
	if c.BookingStepMinutes < 1 || c.BookingStepMinutes > 24*60 {
		errs = append(errs, errors.New("BOOKING_STEP_MINUTES must be between 1 and 1440"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.DBMinConns > c.DBMaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS"))
	}

	return errors.Join(errs...)
}
