package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookledger/backend/internal/config"
)

func TestNewMailer(t *testing.T) {
	t.Run("disabled mail logs instead", func(t *testing.T) {
		m, err := NewMailer(&config.LibraryConfig{MailEnabled: false, SMTPHost: "smtp.example.com"})
		require.NoError(t, err)
		assert.IsType(t, LogMailer{}, m)
		assert.NoError(t, m.Send(context.Background(), "reader@example.com", "Deposit", "<p>hi</p>"))
	})

	t.Run("missing host logs instead", func(t *testing.T) {
		m, err := NewMailer(&config.LibraryConfig{MailEnabled: true})
		require.NoError(t, err)
		assert.IsType(t, LogMailer{}, m)
	})

	t.Run("smtp mailer", func(t *testing.T) {
		m, err := NewMailer(&config.LibraryConfig{
			MailEnabled:  true,
			SMTPHost:     "smtp.example.com",
			SMTPPort:     587,
			SMTPUsername: "library",
			SMTPPassword: "secret",
			MailFrom:     "library@example.com",
		})
		require.NoError(t, err)
		assert.IsType(t, &SMTPMailer{}, m)
	})
}

func TestSMTPMailer_RejectsBadRecipient(t *testing.T) {
	m, err := NewSMTPMailer(&config.LibraryConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, MailFrom: "library@example.com"})
	require.NoError(t, err)

	err = m.Send(context.Background(), "not an address", "Deposit", "<p>hi</p>")
	assert.ErrorContains(t, err, "to address")
}
