// Package status provides a thread-safe status tracker for the simulator.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// Config contains simulator configuration for display.
type Config struct {
	RunID        string
	DeviceID     int
	IntervalMs   int64
	HeartbeatMs  int64
	Timezone     string
	StoreHost    string
	Broker       string
	KafkaBrokers string
	KafkaTopic   string
	HTTPAddr     string
}

// Counts are running totals since start.
type Counts struct {
	Ticks          int
	Stored         int
	StoreFailures  int
	Fallbacks      int
	MirrorFailures int
}

// Snapshot is a point-in-time view of simulator state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Reading       logic.Reading
	HasReading    bool
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the simulator started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable simulator state behind an RWMutex.
// It also implements control.Observer so it can count outcomes directly.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the reading produced by a tick.
// Called from runLoop on every tick.
func (t *Tracker) Update(r logic.Reading) {
	t.mu.Lock()
	t.snap.Reading = r
	t.snap.HasReading = true
	t.snap.Counts.Ticks++
	t.mu.Unlock()
}

// Fallback counts a configuration read that used its default.
func (t *Tracker) Fallback(source string) {
	t.mu.Lock()
	t.snap.Counts.Fallbacks++
	t.mu.Unlock()
}

// Stored counts the outcome of a store insert.
func (t *Tracker) Stored(ok bool) {
	t.mu.Lock()
	if ok {
		t.snap.Counts.Stored++
	} else {
		t.snap.Counts.StoreFailures++
	}
	t.mu.Unlock()
}

// Mirrored counts failed mirror publishes.
func (t *Tracker) Mirrored(name string, ok bool) {
	if ok {
		return
	}
	t.mu.Lock()
	t.snap.Counts.MirrorFailures++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the simulator state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
