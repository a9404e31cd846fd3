package main

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/thermostat-sim/internal/control"
	"github.com/sweeney/thermostat-sim/internal/logic"
	"github.com/sweeney/thermostat-sim/internal/metrics"
	"github.com/sweeney/thermostat-sim/internal/mqtt"
	"github.com/sweeney/thermostat-sim/internal/status"
	"github.com/sweeney/thermostat-sim/internal/store"
)

var berlin = mustLoad("Europe/Berlin")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Monday 2026-01-05 08:00 Berlin
var monday8 = time.Date(2026, 1, 5, 8, 0, 0, 0, berlin)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

func discard(string, ...any) {}

type harness struct {
	store     *store.FakeStore
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	deps      loopDeps
}

func newHarness(manual logic.ManualSetting) *harness {
	h := &harness{
		store:     store.NewFakeStore(manual),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(monday8, status.Config{DeviceID: 2}),
		metrics:   metrics.New(),
	}
	obs := control.Observers{h.tracker, h.metrics}
	h.deps = loopDeps{
		resolver:  control.NewResolver(h.store, 2, discard, obs),
		emitter:   control.NewEmitter(h.store, 2, []control.Mirror{h.publisher}, discard, obs),
		rng:       rand.New(rand.NewSource(1)),
		tracker:   h.tracker,
		metrics:   h.metrics,
		publisher: h.publisher,
	}
	return h
}

// runTicks drives runLoop for n ticks and then delivers signal while it
// waits for the next one. It returns every wait duration runLoop asked for.
func runTicks(t *testing.T, d loopDeps, n int, heartbeat time.Duration, clock func() time.Time, signal os.Signal) ([]time.Duration, error) {
	t.Helper()
	sig := make(chan os.Signal, 1)

	var waits []time.Duration
	after := func(dur time.Duration) <-chan time.Time {
		waits = append(waits, dur)
		ch := make(chan time.Time, 1)
		if len(waits) >= n {
			sig <- signal
		} else {
			ch <- time.Time{}
		}
		return ch
	}

	err := runLoop(d, 120*time.Second, heartbeat, clock, after, sig)
	return waits, err
}

func TestRunLoopOneReadingPerTick(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeManual})
	clock := fakeClock(monday8, 2*time.Minute)

	waits, err := runTicks(t, h.deps, 5, 0, clock, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.store.Readings) != 5 {
		t.Fatalf("expected 5 stored readings, got %d", len(h.store.Readings))
	}
	if len(waits) != 5 {
		t.Errorf("expected 5 waits, got %d", len(waits))
	}
	for i, w := range waits {
		if w != 120*time.Second {
			t.Errorf("wait %d: got %v, want 2m0s", i, w)
		}
	}

	// first tick happens before the first wait
	if !h.store.Readings[0].Timestamp.Equal(monday8.Add(2 * time.Minute)) {
		t.Errorf("first reading at %v", h.store.Readings[0].Timestamp)
	}
	for i, r := range h.store.Readings {
		if r.DeviceID != 2 {
			t.Errorf("reading %d: device_id %d", i, r.DeviceID)
		}
		if r.ControlMode != "MANU" || r.SetTemperature != 22 {
			t.Errorf("reading %d: mode=%s set=%v", i, r.ControlMode, r.SetTemperature)
		}
		if i > 0 && !r.Timestamp.After(h.store.Readings[i-1].Timestamp) {
			t.Errorf("reading %d: timestamps not strictly increasing", i)
		}
	}

	if len(h.publisher.Readings) != 5 {
		t.Errorf("expected 5 mirrored readings, got %d", len(h.publisher.Readings))
	}

	snap := h.tracker.Snapshot()
	if snap.Counts.Ticks != 5 || snap.Counts.Stored != 5 {
		t.Errorf("counts: got %+v", snap.Counts)
	}
	if snap.Reading != h.store.Readings[4] {
		t.Errorf("tracker should hold the last reading, got %+v", snap.Reading)
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	tests := []struct {
		signal os.Signal
		want   string
	}{
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			h := newHarness(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeManual})
			clock := fakeClock(monday8, 2*time.Minute)

			if _, err := runTicks(t, h.deps, 2, 0, clock, tt.signal); err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}

			if len(h.publisher.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(h.publisher.SystemEvents))
			}
			ev := h.publisher.SystemEvents[0]
			if ev.Event != "SHUTDOWN" || ev.Reason != tt.want {
				t.Errorf("event: got %s/%s, want SHUTDOWN/%s", ev.Event, ev.Reason, tt.want)
			}
			if !ev.Retained {
				t.Error("SHUTDOWN should be retained")
			}
			if !strings.Contains(string(h.publisher.SystemPayloads[0]), `"reason":"`+tt.want+`"`) {
				t.Errorf("payload missing reason: %s", h.publisher.SystemPayloads[0])
			}
		})
	}
}

func TestRunLoopStoreFailuresDoNotStop(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeManual})
	h.store.InsertError = errors.New("503 service unavailable")
	clock := fakeClock(monday8, 2*time.Minute)

	if _, err := runTicks(t, h.deps, 3, 0, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.store.Readings) != 0 {
		t.Errorf("expected no stored readings, got %d", len(h.store.Readings))
	}
	if len(h.publisher.Readings) != 3 {
		t.Errorf("mirror should still see every reading, got %d", len(h.publisher.Readings))
	}
	c := h.tracker.Snapshot().Counts
	if c.Ticks != 3 || c.StoreFailures != 3 || c.Stored != 0 {
		t.Errorf("counts: got %+v", c)
	}
}

func TestRunLoopConfigFailuresUseDefaults(t *testing.T) {
	h := newHarness(logic.ManualSetting{})
	h.store.ManualError = errors.New("connection refused")
	h.store.PartyError = errors.New("connection refused")
	clock := fakeClock(monday8, 2*time.Minute)

	if _, err := runTicks(t, h.deps, 3, 0, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	for i, r := range h.store.Readings {
		if r.ControlMode != string(logic.DefaultMode) {
			t.Errorf("reading %d: mode %s, want %s", i, r.ControlMode, logic.DefaultMode)
		}
		if r.SetTemperature != logic.DefaultSetTemperature {
			t.Errorf("reading %d: set %v, want %v", i, r.SetTemperature, logic.DefaultSetTemperature)
		}
	}
	// manual and party fall back on every tick
	if got := h.tracker.Snapshot().Counts.Fallbacks; got != 6 {
		t.Errorf("fallbacks: got %d, want 6", got)
	}
}

func TestRunLoopAutoUsesWeekPlan(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 25, Mode: logic.ModeAuto})
	h.store.Plan = []logic.WeekPlanEntry{
		{Weekday: logic.Monday, TimeOfDay: 6 * 3600, Temperature: 20},
		{Weekday: logic.Monday, TimeOfDay: 22 * 3600, Temperature: 17},
		{Weekday: logic.Sunday, TimeOfDay: 9 * 3600, Temperature: 19.5},
	}
	clock := fakeClock(monday8, 2*time.Minute)

	if _, err := runTicks(t, h.deps, 2, 0, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	for i, r := range h.store.Readings {
		if r.ControlMode != "AUTO" || r.SetTemperature != 20 {
			t.Errorf("reading %d: mode=%s set=%v, want AUTO/20", i, r.ControlMode, r.SetTemperature)
		}
	}
	if h.store.PlanCalls != 2 {
		t.Errorf("plan should be read once per tick, got %d", h.store.PlanCalls)
	}
}

func TestRunLoopPartyOverridesAuto(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 23, Mode: logic.ModeAuto})
	h.store.Party = &logic.PartyWindow{From: monday8, To: monday8.Add(time.Hour)}
	clock := fakeClock(monday8, 2*time.Minute)

	if _, err := runTicks(t, h.deps, 2, 0, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	for i, r := range h.store.Readings {
		if r.ControlMode != "PARTY" || r.SetTemperature != 23 {
			t.Errorf("reading %d: mode=%s set=%v, want PARTY/23", i, r.ControlMode, r.SetTemperature)
		}
	}
	if h.store.PlanCalls != 0 {
		t.Errorf("plan should not be read during a party, got %d calls", h.store.PlanCalls)
	}
}

func TestRunLoopBoost(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeBoost})
	clock := fakeClock(monday8, 2*time.Minute)

	if _, err := runTicks(t, h.deps, 3, 0, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	for i, r := range h.store.Readings {
		if r.ValvePosition != 100 || !r.BoostState {
			t.Errorf("reading %d: valve=%d boost=%t", i, r.ValvePosition, r.BoostState)
		}
	}
}

func TestRunLoopInvariantsOverManyTicks(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 30, Mode: logic.ModeManual})
	h.deps.rng = rand.New(rand.NewSource(42))
	clock := fakeClock(monday8, 2*time.Minute)

	if _, err := runTicks(t, h.deps, 500, 0, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.store.Readings) != 500 {
		t.Fatalf("expected 500 readings, got %d", len(h.store.Readings))
	}
	prev := logic.DefaultActualTemperature
	for i, r := range h.store.Readings {
		if r.ValvePosition < 0 || r.ValvePosition > 100 {
			t.Fatalf("reading %d: valve %d out of range", i, r.ValvePosition)
		}
		cur := float64(r.ActualTemperature)
		if math.Abs(cur-logic.Round1(cur)) > 1e-9 {
			t.Fatalf("reading %d: actual %v not rounded to one decimal", i, cur)
		}
		// approach + heating + noise + rounding slack
		if d := math.Abs(cur - prev); d > 0.1*math.Abs(30-prev)+0.2+0.05+0.05+1e-9 {
			t.Fatalf("reading %d: jumped %.2f from %.1f", i, d, prev)
		}
		prev = cur
	}
}

func TestRunLoopInvalidReadingIsFatal(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: math.NaN(), Mode: logic.ModeManual})
	clock := fakeClock(monday8, 2*time.Minute)

	waits, err := runTicks(t, h.deps, 3, 0, clock, syscall.SIGTERM)
	if !errors.Is(err, logic.ErrInvalidReading) {
		t.Fatalf("expected ErrInvalidReading, got %v", err)
	}
	if len(waits) != 0 {
		t.Errorf("loop should stop on the failing tick, waited %d times", len(waits))
	}
	if len(h.store.Readings) != 0 {
		t.Errorf("nothing should be stored, got %d", len(h.store.Readings))
	}
	if len(h.publisher.SystemEvents) != 0 {
		t.Errorf("no SHUTDOWN on a fatal error, got %d events", len(h.publisher.SystemEvents))
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// clock calls: c0 = heartbeat baseline, ticks at +5m, +10m, +15m, +20m.
	// Heartbeat fires at +15m only.
	h := newHarness(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeManual})
	h.publisher.Connected = true
	clock := fakeClock(monday8, 5*time.Minute)

	if _, err := runTicks(t, h.deps, 4, 15*time.Minute, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var events []string
	for _, se := range h.publisher.SystemEvents {
		events = append(events, se.Event)
	}
	if strings.Join(events, ",") != "HEARTBEAT,SHUTDOWN" {
		t.Fatalf("system events: got %v", events)
	}

	hb := h.publisher.SystemEvents[0]
	if hb.Retained {
		t.Error("HEARTBEAT should not be retained")
	}
	if !hb.Timestamp.Equal(monday8.Add(15 * time.Minute)) {
		t.Errorf("heartbeat timestamp: got %v", hb.Timestamp)
	}
	payload := string(h.publisher.SystemPayloads[0])
	if !strings.Contains(payload, `"event":"HEARTBEAT"`) || !strings.Contains(payload, `"ticks":3`) {
		t.Errorf("heartbeat payload: %s", payload)
	}
	if !strings.Contains(payload, `"connected":true`) {
		t.Errorf("heartbeat should report mqtt connection: %s", payload)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeManual})
	clock := fakeClock(monday8, time.Hour)

	if _, err := runTicks(t, h.deps, 5, 0, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	for _, se := range h.publisher.SystemEvents {
		if se.Event == "HEARTBEAT" {
			t.Fatal("no HEARTBEAT expected when disabled")
		}
	}
}

func TestRunLoopMirrorAndEventFailures(t *testing.T) {
	h := newHarness(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeManual})
	h.publisher.PublishError = errors.New("not connected")
	h.publisher.PublishSystemError = errors.New("not connected")
	clock := fakeClock(monday8, 10*time.Minute)

	if _, err := runTicks(t, h.deps, 3, 15*time.Minute, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.store.Readings) != 3 {
		t.Errorf("store writes should be unaffected, got %d", len(h.store.Readings))
	}
	if got := h.tracker.Snapshot().Counts.MirrorFailures; got != 3 {
		t.Errorf("mirror failures: got %d, want 3", got)
	}
}

func TestRunLoopWithoutOptionalCollaborators(t *testing.T) {
	fs := store.NewFakeStore(logic.ManualSetting{SetTemperature: 22, Mode: logic.ModeManual})
	d := loopDeps{
		resolver: control.NewResolver(fs, 2, discard, nil),
		emitter:  control.NewEmitter(fs, 2, nil, discard, nil),
		rng:      rand.New(rand.NewSource(1)),
	}
	clock := fakeClock(monday8, 10*time.Minute)

	if _, err := runTicks(t, d, 3, 15*time.Minute, clock, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(fs.Readings) != 3 {
		t.Errorf("expected 3 readings, got %d", len(fs.Readings))
	}
}

func TestConfigValidate(t *testing.T) {
	valid := config{interval: 2 * time.Minute, supabaseURL: "https://abc.supabase.co", supabaseKey: "k"}
	if err := valid.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config)
	}{
		{"missing url", func(c *config) { c.supabaseURL = "" }},
		{"missing key", func(c *config) { c.supabaseKey = "" }},
		{"zero interval", func(c *config) { c.interval = 0 }},
		{"negative heartbeat", func(c *config) { c.heartbeat = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunRefusesToStartWithoutSecrets(t *testing.T) {
	err := run(config{interval: time.Minute, tz: "Europe/Berlin"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), envSupabaseURL) {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

func TestPrintConfigRedactsKey(t *testing.T) {
	var buf bytes.Buffer
	printConfig(&buf, config{
		deviceID:    2,
		interval:    2 * time.Minute,
		tz:          "Europe/Berlin",
		kafkaTopic:  "thermostat.readings",
		supabaseURL: "https://abc.supabase.co",
		supabaseKey: "super-secret",
	})

	out := buf.String()
	if strings.Contains(out, "super-secret") {
		t.Error("key must not be printed")
	}
	for _, want := range []string{"device_id:     2", "interval:      2m0s", "<redacted>", "https://abc.supabase.co", "broker:        disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStoreHost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://abc.supabase.co", "abc.supabase.co"},
		{"http://localhost:54321/", "localhost:54321"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := storeHost(tt.in); got != tt.want {
			t.Errorf("storeHost(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
