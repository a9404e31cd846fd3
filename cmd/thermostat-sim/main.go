// Command thermostat-sim simulates a radiator thermostat. Every interval it
// reads its configuration from a Supabase project, advances the simulated
// room and valve, and appends one reading to the store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/sweeney/thermostat-sim/internal/control"
	"github.com/sweeney/thermostat-sim/internal/kafka"
	"github.com/sweeney/thermostat-sim/internal/logic"
	"github.com/sweeney/thermostat-sim/internal/metrics"
	"github.com/sweeney/thermostat-sim/internal/mqtt"
	"github.com/sweeney/thermostat-sim/internal/status"
	"github.com/sweeney/thermostat-sim/internal/store"
	"github.com/sweeney/thermostat-sim/internal/web"
)

// Secrets are only ever read from the environment.
const (
	envSupabaseURL = "SUPABASE_URL"
	envSupabaseKey = "SUPABASE_KEY"
)

type config struct {
	deviceID     int
	interval     time.Duration
	tz           string
	seed         int64
	httpAddr     string
	broker       string
	heartbeat    time.Duration
	kafkaBrokers string
	kafkaTopic   string
	printConfig  bool

	supabaseURL string
	supabaseKey string
}

func main() {
	var cfg config
	flag.IntVar(&cfg.deviceID, "device-id", 2, "Device identifier to simulate")
	flag.DurationVar(&cfg.interval, "interval", 120*time.Second, "Tick interval")
	flag.StringVar(&cfg.tz, "tz", "Europe/Berlin", "IANA timezone for readings and week plan lookup")
	flag.Int64Var(&cfg.seed, "seed", 0, "Random seed (0 seeds from the clock)")
	flag.StringVar(&cfg.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.StringVar(&cfg.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.DurationVar(&cfg.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&cfg.kafkaBrokers, "kafka-brokers", "", "Comma-separated Kafka brokers (empty to disable)")
	flag.StringVar(&cfg.kafkaTopic, "kafka-topic", kafka.DefaultTopic, "Kafka topic for readings")
	flag.BoolVar(&cfg.printConfig, "print-config", false, "Print resolved configuration and exit")

	flag.Parse()

	cfg.supabaseURL = os.Getenv(envSupabaseURL)
	cfg.supabaseKey = os.Getenv(envSupabaseKey)

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func (c config) validate() error {
	if c.supabaseURL == "" || c.supabaseKey == "" {
		return fmt.Errorf("%s and %s must be set", envSupabaseURL, envSupabaseKey)
	}
	if c.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.interval)
	}
	if c.heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.heartbeat)
	}
	return nil
}

func run(cfg config) error {
	if cfg.printConfig {
		printConfig(os.Stdout, cfg)
		return nil
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.tz)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	st, err := store.NewRealStore(cfg.supabaseURL, cfg.supabaseKey, nil)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	runID := uuid.NewString()
	m := metrics.New()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		RunID:        runID,
		DeviceID:     cfg.deviceID,
		IntervalMs:   cfg.interval.Milliseconds(),
		HeartbeatMs:  cfg.heartbeat.Milliseconds(),
		Timezone:     loc.String(),
		StoreHost:    storeHost(cfg.supabaseURL),
		Broker:       cfg.broker,
		KafkaBrokers: cfg.kafkaBrokers,
		KafkaTopic:   cfg.kafkaTopic,
		HTTPAddr:     cfg.httpAddr,
	})
	observers := control.Observers{tracker, m}

	var mirrors []control.Mirror
	var publisher mqtt.Publisher
	if cfg.broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.broker, "thermostat-sim-"+runID, cfg.deviceID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher = p
		mirrors = append(mirrors, p)
	}
	if cfg.kafkaBrokers != "" {
		w, err := kafka.NewWriter(cfg.kafkaBrokers, cfg.kafkaTopic)
		if err != nil {
			return fmt.Errorf("init kafka: %w", err)
		}
		km := kafka.NewMirror(w)
		defer km.Close()
		mirrors = append(mirrors, km)
	}

	if publisher != nil {
		if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
			tracker.SetMQTTConnected(cs.IsConnected())
		}
		// Publish startup event with full status snapshot
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// Start HTTP status server
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker, m.Handler(), os.Stdout)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	seed := cfg.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Printf("started: device=%d interval=%v tz=%s store=%s broker=%q kafka=%q run=%s seed=%d",
		cfg.deviceID, cfg.interval, loc, storeHost(cfg.supabaseURL), cfg.broker, cfg.kafkaBrokers, runID, seed)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	deps := loopDeps{
		resolver:  control.NewResolver(st, cfg.deviceID, nil, observers),
		emitter:   control.NewEmitter(st, cfg.deviceID, mirrors, nil, observers),
		rng:       rand.New(rand.NewSource(seed)),
		tracker:   tracker,
		metrics:   m,
		publisher: publisher,
	}
	now := func() time.Time { return time.Now().In(loc) }

	return runLoop(deps, cfg.interval, cfg.heartbeat, now, time.After, sigCh)
}

// loopDeps are the collaborators driven by runLoop. tracker, metrics and
// publisher may be nil.
type loopDeps struct {
	resolver  *control.Resolver
	emitter   *control.Emitter
	rng       logic.Rand
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	publisher mqtt.Publisher
}

// runLoop ticks immediately and then once per interval until a signal
// arrives. The wait does not account for time spent inside the tick.
func runLoop(d loopDeps, interval, heartbeat time.Duration, now func() time.Time, after func(time.Duration) <-chan time.Time, sig <-chan os.Signal) error {
	ctx := context.Background()
	state := logic.NewDeviceState()
	lastHeartbeat := now()

	for {
		t := now()
		res := d.resolver.Resolve(ctx, t)
		state = logic.Step(state, res, d.rng)

		out, err := d.emitter.Emit(ctx, t, state)
		if err != nil {
			return fmt.Errorf("emit reading: %w", err)
		}

		d.metrics.Tick()
		d.metrics.ObserveReading(out.Reading)
		if d.tracker != nil {
			d.tracker.Update(out.Reading)
			d.refreshMQTT()
		}

		if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
			lastHeartbeat = t
			if err := d.publishSystem(t, "HEARTBEAT", "", false); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}

		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if d.publisher != nil {
				if err := d.publishSystem(now(), "SHUTDOWN", signalName, true); err != nil {
					log.Printf("failed to publish shutdown event: %v", err)
				} else {
					log.Printf("published shutdown event")
				}
			}
			return nil

		case <-after(interval):
		}
	}
}

func (d loopDeps) refreshMQTT() {
	if d.tracker == nil || d.publisher == nil {
		return
	}
	if cs, ok := d.publisher.(mqtt.ConnectionStatus); ok {
		d.tracker.SetMQTTConnected(cs.IsConnected())
	}
}

// publishSystem sends a lifecycle event carrying a status snapshot when a
// tracker is available.
func (d loopDeps) publishSystem(t time.Time, event, reason string, retained bool) error {
	if d.publisher == nil {
		return nil
	}
	ev := mqtt.SystemEvent{
		Timestamp: t,
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		d.refreshMQTT()
		ev.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	return d.publisher.PublishSystem(ev)
}

// storeHost returns the host part of the store URL for display.
func storeHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}

func printConfig(w io.Writer, cfg config) {
	key := "<unset>"
	if cfg.supabaseKey != "" {
		key = "<redacted>"
	}
	fmt.Fprintf(w, "device_id:     %d\n", cfg.deviceID)
	fmt.Fprintf(w, "interval:      %v\n", cfg.interval)
	fmt.Fprintf(w, "tz:            %s\n", cfg.tz)
	fmt.Fprintf(w, "seed:          %d\n", cfg.seed)
	fmt.Fprintf(w, "http:          %s\n", orDisabled(cfg.httpAddr))
	fmt.Fprintf(w, "broker:        %s\n", orDisabled(cfg.broker))
	fmt.Fprintf(w, "heartbeat:     %v\n", cfg.heartbeat)
	fmt.Fprintf(w, "kafka_brokers: %s\n", orDisabled(cfg.kafkaBrokers))
	fmt.Fprintf(w, "kafka_topic:   %s\n", cfg.kafkaTopic)
	fmt.Fprintf(w, "%s:  %s\n", envSupabaseURL, orUnset(cfg.supabaseURL))
	fmt.Fprintf(w, "%s:  %s\n", envSupabaseKey, key)
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}

func orUnset(s string) string {
	if s == "" {
		return "<unset>"
	}
	return s
}
