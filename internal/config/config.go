package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	APIToken        string

	ClassifierModel    string
	ClassifierTimeout  time.Duration
	ClassifierBudget   time.Duration
	ClassifierAttempts int
	ClassifierBackoff  time.Duration

	RulesFile       string
	CatalogTTL      time.Duration
	TransferTarget  string
	SlackBotToken   string
	SlackChannel    string
	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		Port:            envInt("FRONTDESK_PORT", 8760),
		NatsURL:         envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		APIToken:        envStr("FRONTDESK_API_TOKEN", ""),

		ClassifierModel:    envStr("FRONTDESK_CLASSIFIER_MODEL", "claude-haiku-4-5"),
		ClassifierTimeout:  envDuration("FRONTDESK_CLASSIFIER_TIMEOUT", 1500*time.Millisecond),
		ClassifierBudget:   envDuration("FRONTDESK_CLASSIFIER_BUDGET", 5*time.Second),
		ClassifierAttempts: envInt("FRONTDESK_CLASSIFIER_ATTEMPTS", 2),
		ClassifierBackoff:  envDuration("FRONTDESK_CLASSIFIER_BACKOFF", 100*time.Millisecond),

		RulesFile:       envStr("FRONTDESK_RULES_FILE", ""),
		CatalogTTL:      envDuration("FRONTDESK_CATALOG_TTL", time.Minute),
		TransferTarget:  envStr("FRONTDESK_TRANSFER_TARGET", "dispatch"),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_ONCALL_CHANNEL", ""),
		ShutdownTimeout: envDuration("FRONTDESK_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("750ms") or plain milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return fallback
}
