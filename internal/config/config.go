// Package config provides configuration parsing and validation for the
// engine and ingestor binaries.
package config

import (
	"fmt"
	"time"
)

// EngineConfig holds all configuration parameters for the engine binary.
type EngineConfig struct {
	PostgresDSN string

	// Kafka event publishing is optional; empty brokers disable it.
	KafkaBrokers string
	EventsTopic  string

	// Redis metrics reporting is optional; empty address disables it.
	RedisAddr string

	// AI classifier service; empty URL disables AI classification.
	AIServiceURL string

	// WhatsApp transport; empty base URL disables notifications.
	WhatsappBaseURL string
	WhatsappToken   string

	BatchLimit int
	BatchDelay time.Duration

	// ProcessN > 0 processes exactly one batch of that size and exits;
	// zero runs in process-all mode.
	ProcessN int

	// LowPressureRule toggles the low-pressure classification rule.
	LowPressureRule bool
}

// Validate checks that all required configuration fields are set and
// have valid values.
func (c *EngineConfig) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.KafkaBrokers != "" && c.EventsTopic == "" {
		return fmt.Errorf("events-topic cannot be empty when kafka-brokers is set")
	}
	if c.WhatsappBaseURL != "" && c.WhatsappToken == "" {
		return fmt.Errorf("whatsapp-token cannot be empty when whatsapp-base-url is set")
	}
	if c.BatchLimit <= 0 {
		return fmt.Errorf("batch-limit must be positive")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch-delay cannot be negative")
	}
	if c.ProcessN < 0 {
		return fmt.Errorf("process-n cannot be negative")
	}
	return nil
}

// IngestorConfig holds all configuration parameters for the ingestor
// binary.
type IngestorConfig struct {
	KafkaBrokers    string
	TelemetryTopic  string
	ConsumerGroupID string
	PostgresDSN     string

	// Redis metrics reporting is optional; empty address disables it.
	RedisAddr string
}

// Validate checks that all required configuration fields are set.
func (c *IngestorConfig) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.TelemetryTopic == "" {
		return fmt.Errorf("telemetry-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	return nil
}
