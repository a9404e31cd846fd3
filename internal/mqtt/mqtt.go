// Package mqtt mirrors readings and lifecycle events to an MQTT broker,
// with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// TopicPrefix is the root of all topics published by the simulator.
const TopicPrefix = "thermostat"

// ReadingsTopic returns the topic readings for deviceID are published on.
func ReadingsTopic(deviceID int) string {
	return fmt.Sprintf("%s/%d/readings", TopicPrefix, deviceID)
}

// SystemTopic returns the topic lifecycle events for deviceID are published on.
func SystemTopic(deviceID int) string {
	return fmt.Sprintf("%s/%d/system", TopicPrefix, deviceID)
}

// Publisher publishes readings and system events to MQTT.
type Publisher interface {
	// Name identifies the publisher in logs and metrics.
	Name() string

	// PublishReading sends a reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishReading(ctx context.Context, r logic.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message payload for a reading.
type Payload struct {
	Reading logic.Reading `json:"reading"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(r logic.Reading) ([]byte, error) {
	return json.Marshal(Payload{Reading: r})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
