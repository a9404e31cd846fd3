// Package kafka mirrors readings onto a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// DefaultTopic receives readings unless configured otherwise.
const DefaultTopic = "thermostat.readings"

// MessageWriter is the part of *kafkago.Writer the mirror uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Mirror publishes each reading as one JSON message keyed by device id.
type Mirror struct {
	w MessageWriter
}

// NewMirror wraps an existing writer.
func NewMirror(w MessageWriter) *Mirror {
	return &Mirror{w: w}
}

// NewWriter returns a writer for the comma-separated broker list.
func NewWriter(brokers, topic string) (*kafkago.Writer, error) {
	addrs := ParseBrokers(brokers)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no kafka brokers in %q", brokers)
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
	}, nil
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Name identifies the mirror.
func (m *Mirror) Name() string { return "kafka" }

// PublishReading writes one message for the reading.
func (m *Mirror) PublishReading(ctx context.Context, r logic.Reading) error {
	msg, err := Message(r)
	if err != nil {
		return err
	}
	if err := m.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (m *Mirror) Close() error {
	return m.w.Close()
}

// Message encodes a reading as a Kafka message.
func Message(r logic.Reading) (kafkago.Message, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("marshal reading: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(r.DeviceID)),
		Value: b,
		Time:  r.Timestamp,
	}, nil
}
