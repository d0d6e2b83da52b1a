package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	EnableTaskExpiry         bool
	EnableSignalPolling      bool
	EnableFlightSweep        bool
	EnableTaskConsumer       bool
	EnableActivationConsumer bool

	AdapterTimeoutMS  int
	SignalPollWorkers int
	ReviewWindowHours int
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "adbroker"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		EnableTaskExpiry:         envBool("ENABLE_TASK_EXPIRY", true),
		EnableSignalPolling:      envBool("ENABLE_SIGNAL_POLLING", true),
		EnableFlightSweep:        envBool("ENABLE_FLIGHT_SWEEP", true),
		EnableTaskConsumer:       envBool("ENABLE_TASK_CONSUMER", true),
		EnableActivationConsumer: envBool("ENABLE_ACTIVATION_CONSUMER", true),

		AdapterTimeoutMS:  envInt("ADAPTER_TIMEOUT_MS", 10000),
		SignalPollWorkers: envInt("SIGNAL_POLL_WORKERS", 4),
		ReviewWindowHours: envInt("REVIEW_WINDOW_HOURS", 48),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
