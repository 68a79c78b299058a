package config

import (
	"errors"
	"fmt"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	StoreDriver         string
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	MongoConnectTimeout time.Duration

	SourcesManifest string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	AuditInterval   time.Duration

	// Report publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers     []string
	KafkaReportTopic string

	// Metrics push is disabled when PushgatewayURL is empty.
	PushgatewayURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	connectTimeout, err := parsePositiveDuration("MONGO_CONNECT_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	auditInterval, err := parsePositiveDuration("AUDIT_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StoreDriver:         sharedcfg.EnvOrDefault("STORE_DRIVER", DriverMongo),
		MongoURI:            sharedcfg.EnvOrDefault("MONGO_URI", "mongodb://localhost:27017/"),
		MongoDatabase:       sharedcfg.EnvOrDefault("MONGO_DATABASE", "meteo_projet"),
		MongoCollection:     sharedcfg.EnvOrDefault("MONGO_COLLECTION", "donnees_horaires"),
		MongoConnectTimeout: connectTimeout,
		SourcesManifest:     sharedcfg.EnvOrDefault("SOURCES_MANIFEST", "sources.yaml"),
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		AuditInterval:       auditInterval,
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "")),
		KafkaReportTopic:    sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "weather-quality-reports"),
		PushgatewayURL:      sharedcfg.EnvOrDefault("PUSHGATEWAY_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flags may have overridden after Load.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: must be %s or %s", c.StoreDriver, DriverMongo, DriverMemory)
	}
	if c.MongoDatabase == "" {
		return errors.New("MONGO_DATABASE is required")
	}
	if c.MongoCollection == "" {
		return errors.New("MONGO_COLLECTION is required")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaReportTopic == "" {
		return errors.New("KAFKA_REPORT_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// PublishReports reports whether a Kafka report sink is configured.
func (c *Config) PublishReports() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}
