package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

type Config struct {
	DatabaseDSN         string        `env:"DATABASE_DSN,required=true"`
	IssuanceEndpoint    string        `env:"ISSUANCE_ENDPOINT,required=true"`
	IssuanceOfferID     string        `env:"ISSUANCE_OFFER_ID,required=true"`
	IssuanceOrigin      string        `env:"ISSUANCE_ORIGIN"`
	IssuanceTimeout     time.Duration `env:"ISSUANCE_TIMEOUT,default=15s"`
	CredentialsPath     string        `env:"CREDENTIALS_PATH,default=auth_tokens.txt"`
	ProxyListPath       string        `env:"PROXY_LIST_PATH"`
	RedisURL            string        `env:"REDIS_URL"`
	RabbitMQURL         string        `env:"RABBITMQ_URL"`
	RateLimitPerSec     int           `env:"RATE_LIMIT_PER_SEC,default=10"`
	BatchSize           int           `env:"BATCH_SIZE,default=20"`
	BatchDelay          time.Duration `env:"BATCH_DELAY,default=5s"`
	MaxAttempts         int           `env:"MAX_ATTEMPTS,default=3"`
	AttemptDelay        time.Duration `env:"ATTEMPT_DELAY,default=2s"`
	AcquisitionInterval time.Duration `env:"ACQUISITION_INTERVAL,default=1h"`
	MaxDispense         int           `env:"MAX_DISPENSE,default=100"`
	APIPort             int           `env:"API_PORT,default=8080"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load config: %v", domain.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the pipeline bounds that env tags cannot express.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.IssuanceEndpoint) == "" {
		problems = append(problems, "issuance endpoint is required")
	}
	if strings.TrimSpace(c.IssuanceOfferID) == "" {
		problems = append(problems, "issuance offer id is required")
	}
	if strings.TrimSpace(c.CredentialsPath) == "" {
		problems = append(problems, "credentials path is required")
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch size must be > 0")
	}
	if c.MaxAttempts <= 0 {
		problems = append(problems, "max attempts must be > 0")
	}
	if c.BatchDelay < 0 {
		problems = append(problems, "batch delay must be >= 0")
	}
	if c.AttemptDelay < 0 {
		problems = append(problems, "attempt delay must be >= 0")
	}
	if c.AcquisitionInterval < 0 {
		problems = append(problems, "acquisition interval must be >= 0")
	}
	if c.IssuanceTimeout <= 0 {
		problems = append(problems, "issuance timeout must be > 0")
	}
	if c.MaxDispense <= 0 {
		problems = append(problems, "max dispense must be > 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}
