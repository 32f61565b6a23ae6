package config

import (
	"os"
	"strconv"
	"time"
)

type LibraryConfig struct {
	NotificationQueue   string
	NotificationWorkers int
	QueuePollTimeout    time.Duration
	PublishTimeout      time.Duration
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	MailFrom            string
	MailEnabled         bool
	BaseURL             string
	MediaDir            string
	LedgerTxRetries     int
}

func LoadLibraryConfig() *LibraryConfig {
	return &LibraryConfig{
		NotificationQueue:   getEnv("NOTIFICATION_QUEUE", "notifications:outbox"),
		NotificationWorkers: getEnvAsInt("NOTIFICATION_WORKERS", 2),
		QueuePollTimeout:    getEnvAsDuration("NOTIFICATION_POLL_TIMEOUT", 5*time.Second),
		PublishTimeout:      getEnvAsDuration("NOTIFICATION_PUBLISH_TIMEOUT", 2*time.Second),
		SMTPHost:            getEnv("EMAIL_HOST", ""),
		SMTPPort:            getEnvAsInt("EMAIL_PORT", 587),
		SMTPUsername:        getEnv("EMAIL_HOST_USER", ""),
		SMTPPassword:        getEnv("EMAIL_HOST_PASSWORD", ""),
		MailFrom:            getEnv("EMAIL_FROM", "library@localhost"),
		MailEnabled:         getEnvAsBool("EMAIL_ENABLED", true),
		BaseURL:             getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		MediaDir:            getEnv("MEDIA_ROOT", "./media"),
		LedgerTxRetries:     getEnvAsInt("LEDGER_TX_RETRIES", 3),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
