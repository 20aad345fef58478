package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// AutoMigrate applies the embedded schema on startup. Intended for
	// development and fresh deployments; production schema changes go
	// through reviewed migrations.
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"false"`

	// Garmin OAuth client credentials. Empty credentials disable token
	// refresh; callers get a configuration error instead of a dead call
	// to the token endpoint.
	GarminClientID     string `env:"GARMIN_CLIENT_ID"`
	GarminClientSecret string `env:"GARMIN_CLIENT_SECRET"`
	GarminAPIBaseURL   string `env:"GARMIN_API_BASE_URL" envDefault:"https://apis.garmin.com"`

	// Shared secret for webhook signature verification and the bearer
	// token protecting the /v1 management endpoints.
	WebhookSignatureSecret string `env:"WEBHOOK_SIGNATURE_SECRET"`
	ServiceToken           string `env:"SERVICE_TOKEN"`

	// Token lifecycle tuning. The defaults track the provider's observed
	// rate limits; keep them overridable per environment.
	TokenRefreshThresholdHours int `env:"TOKEN_REFRESH_THRESHOLD_HOURS" envDefault:"6"`
	RefreshLeaseSeconds        int `env:"REFRESH_LEASE_SECONDS" envDefault:"30"`
	LockContentionWaitSeconds  int `env:"LOCK_CONTENTION_WAIT_SECONDS" envDefault:"3"`

	// Backfill tuning. Chunks step by calendar months (~60 days at the
	// default) so a whole-year horizon always splits into whole windows.
	BackfillChunkMonths       int `env:"BACKFILL_CHUNK_MONTHS" envDefault:"2"`
	BackfillMaxYears          int `env:"BACKFILL_MAX_YEARS" envDefault:"5"`
	BackfillRequestGapSeconds int `env:"BACKFILL_REQUEST_GAP_SECONDS" envDefault:"10"`
	StaleChunkAgeHours        int `env:"STALE_CHUNK_AGE_HOURS" envDefault:"24"`

	WebhookRateLimitPerMin int   `env:"WEBHOOK_RATE_LIMIT_PER_MIN" envDefault:"120"`
	MaxBodyBytes           int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

func (c *Config) TokenRefreshThreshold() time.Duration {
	return time.Duration(c.TokenRefreshThresholdHours) * time.Hour
}

func (c *Config) RefreshLease() time.Duration {
	return time.Duration(c.RefreshLeaseSeconds) * time.Second
}

func (c *Config) LockContentionWait() time.Duration {
	return time.Duration(c.LockContentionWaitSeconds) * time.Second
}

func (c *Config) BackfillRequestGap() time.Duration {
	return time.Duration(c.BackfillRequestGapSeconds) * time.Second
}

func (c *Config) StaleChunkAge() time.Duration {
	return time.Duration(c.StaleChunkAgeHours) * time.Hour
}

// BackfillRunTimeout bounds one synchronous backfill request loop at its
// worst case: every chunk of the largest allowed plan paying one provider
// call plus one inter-request gap. The standard request timeout is far too
// short for that loop, so the backfill routes get this one instead.
func (c *Config) BackfillRunTimeout() time.Duration {
	chunks := (c.BackfillMaxYears*monthsPerYear + c.BackfillChunkMonths - 1) / c.BackfillChunkMonths
	return time.Duration(chunks)*(c.BackfillRequestGap()+GarminHTTPTimeout) + ServerRequestTimeout
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.BackfillChunkMonths <= 0 {
		return fmt.Errorf("BACKFILL_CHUNK_MONTHS must be positive")
	}
	if c.BackfillMaxYears <= 0 {
		return fmt.Errorf("BACKFILL_MAX_YEARS must be positive")
	}
	if c.RefreshLeaseSeconds <= c.LockContentionWaitSeconds {
		return fmt.Errorf("REFRESH_LEASE_SECONDS must be longer than LOCK_CONTENTION_WAIT_SECONDS")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}

	if isProduction {
		if err := validateSecret("SERVICE_TOKEN", c.ServiceToken); err != nil {
			return err
		}
		if c.WebhookSignatureSecret == "" {
			log.Warn().Msg("WEBHOOK_SIGNATURE_SECRET is empty in production: webhook signature verification disabled")
		}
		if c.GarminClientID == "" || c.GarminClientSecret == "" {
			log.Warn().Msg("Garmin client credentials not configured: token refresh disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
