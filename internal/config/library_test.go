package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadLibraryConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadLibraryConfig()
		assert.Equal(t, "notifications:outbox", cfg.NotificationQueue)
		assert.Equal(t, 587, cfg.SMTPPort)
		assert.Equal(t, 3, cfg.LedgerTxRetries)
		assert.True(t, cfg.MailEnabled)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("NOTIFICATION_QUEUE", "mail:queue")
		t.Setenv("NOTIFICATION_POLL_TIMEOUT", "250ms")
		t.Setenv("EMAIL_ENABLED", "false")
		t.Setenv("LEDGER_TX_RETRIES", "5")

		cfg := LoadLibraryConfig()
		assert.Equal(t, "mail:queue", cfg.NotificationQueue)
		assert.Equal(t, 250*time.Millisecond, cfg.QueuePollTimeout)
		assert.False(t, cfg.MailEnabled)
		assert.Equal(t, 5, cfg.LedgerTxRetries)
	})

	t.Run("malformed values fall back", func(t *testing.T) {
		t.Setenv("EMAIL_PORT", "not-a-port")
		t.Setenv("NOTIFICATION_PUBLISH_TIMEOUT", "soon")

		cfg := LoadLibraryConfig()
		assert.Equal(t, 587, cfg.SMTPPort)
		assert.Equal(t, 2*time.Second, cfg.PublishTimeout)
	})
}
