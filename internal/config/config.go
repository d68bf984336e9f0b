package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Environment  string        `envconfig:"GO_ENV" default:"development"`
	Port         string        `envconfig:"PORT" default:"8080"`
	Verbose      bool          `envconfig:"LOG_VERBOSE" default:"true"`
	LogFile      string        `envconfig:"LOG_FILE"`
	DrawAttempts int           `envconfig:"DRAW_ATTEMPTS" default:"10"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	ResultsDir   string        `envconfig:"RESULTS_DIR" default:"."`
	DatabaseURL  string        `envconfig:"DATABASE_URL"`
	MailConfig
}

// MailConfig selects and configures the outgoing mail provider.
type MailConfig struct {
	Provider    string `envconfig:"MAIL_PROVIDER" default:"noop"`
	FromAddress string `envconfig:"MAIL_FROM_ADDRESS"`
	FromName    string `envconfig:"MAIL_FROM_NAME" default:"Secret Santa"`

	SESRegion          string `envconfig:"SES_REGION" default:"eu-west-1"`
	SESAccessKeyID     string `envconfig:"SES_ACCESS_KEY_ID"`
	SESSecretAccessKey string `envconfig:"SES_SECRET_ACCESS_KEY"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

// Load reads configuration from the environment.
// Outside production a .env file is loaded first when present.
func Load() (*Config, error) {
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logger.Warningf("Could not load .env file: %v", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.DrawAttempts < 1 {
		return nil, fmt.Errorf("DRAW_ATTEMPTS must be at least 1, got %d", cfg.DrawAttempts)
	}
	return &cfg, nil
}
