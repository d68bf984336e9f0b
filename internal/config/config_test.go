package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GO_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.DrawAttempts)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "noop", cfg.MailConfig.Provider)
	assert.Equal(t, 587, cfg.MailConfig.SMTPPort)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("DRAW_ATTEMPTS", "3")
	t.Setenv("MAIL_PROVIDER", "smtp")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SESSION_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.DrawAttempts)
	assert.Equal(t, "smtp", cfg.MailConfig.Provider)
	assert.Equal(t, "smtp.example.com", cfg.MailConfig.SMTPHost)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
}

func TestLoad_RejectsZeroAttempts(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("DRAW_ATTEMPTS", "0")

	_, err := Load()
	assert.Error(t, err)
}
