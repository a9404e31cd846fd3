package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	RunID         string         `json:"run_id"`
	Ready         bool           `json:"ready"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	Reading       *logic.Reading `json:"reading,omitempty"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"counts"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Ticks          int `json:"ticks"`
	Stored         int `json:"stored"`
	StoreFailures  int `json:"store_failures"`
	Fallbacks      int `json:"fallbacks"`
	MirrorFailures int `json:"mirror_failures"`
}

// ConfigJSON is the JSON representation of simulator config.
type ConfigJSON struct {
	DeviceID     int    `json:"device_id"`
	IntervalMs   int64  `json:"interval_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Timezone     string `json:"timezone"`
	StoreHost    string `json:"store_host"`
	Broker       string `json:"broker"`
	KafkaBrokers string `json:"kafka_brokers,omitempty"`
	KafkaTopic   string `json:"kafka_topic,omitempty"`
	HTTPAddr     string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		RunID:         snap.Config.RunID,
		Ready:         snap.HasReading,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Ticks:          snap.Counts.Ticks,
			Stored:         snap.Counts.Stored,
			StoreFailures:  snap.Counts.StoreFailures,
			Fallbacks:      snap.Counts.Fallbacks,
			MirrorFailures: snap.Counts.MirrorFailures,
		},
		Config: ConfigJSON{
			DeviceID:     snap.Config.DeviceID,
			IntervalMs:   snap.Config.IntervalMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Timezone:     snap.Config.Timezone,
			StoreHost:    snap.Config.StoreHost,
			Broker:       snap.Config.Broker,
			KafkaBrokers: snap.Config.KafkaBrokers,
			KafkaTopic:   snap.Config.KafkaTopic,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
	if snap.HasReading {
		r := snap.Reading
		inner.Reading = &r
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
