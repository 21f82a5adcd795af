package kafka

import (
	"reflect"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		want    []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"multiple", "a:9092,b:9092", []string{"a:9092", "b:9092"}},
		{"whitespace", " a:9092 , b:9092 ", []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseBrokers(tt.brokers); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseBrokers(%q) = %v, want %v", tt.brokers, got, tt.want)
			}
		})
	}
}

func TestValidateConsumerParams(t *testing.T) {
	tests := []struct {
		name    string
		brokers string
		topic   string
		groupID string
		wantErr bool
	}{
		{"valid", "localhost:9092", "topic", "group", false},
		{"missing brokers", "", "topic", "group", true},
		{"missing topic", "localhost:9092", "", "group", true},
		{"missing group", "localhost:9092", "topic", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConsumerParams(tt.brokers, tt.topic, tt.groupID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConsumerParams() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateProducerParams(t *testing.T) {
	if err := ValidateProducerParams("localhost:9092", "topic"); err != nil {
		t.Errorf("ValidateProducerParams() error = %v", err)
	}
	if err := ValidateProducerParams("", "topic"); err == nil {
		t.Error("ValidateProducerParams() error = nil, want error for empty brokers")
	}
	if err := ValidateProducerParams("localhost:9092", ""); err == nil {
		t.Error("ValidateProducerParams() error = nil, want error for empty topic")
	}
}

func TestNewReaderConfig(t *testing.T) {
	cfg := NewReaderConfig([]string{"localhost:9092"}, "telemetry.readings", "ingestor-group")
	if cfg.Topic != "telemetry.readings" || cfg.GroupID != "ingestor-group" {
		t.Errorf("config = %+v, want topic and group preserved", cfg)
	}
	if cfg.StartOffset != kafka.FirstOffset {
		t.Errorf("StartOffset = %d, want FirstOffset", cfg.StartOffset)
	}
	if cfg.CommitInterval != CommitInterval {
		t.Errorf("CommitInterval = %v, want %v", cfg.CommitInterval, CommitInterval)
	}
}
