// Package metrics exposes simulator counters and gauges to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

const namespace = "thermostat"

// Metrics holds the simulator collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	fallbacks    *prometheus.CounterVec
	storeWrites  *prometheus.CounterVec
	mirrorWrites *prometheus.CounterVec

	actual     *prometheus.GaugeVec
	setpoint   *prometheus.GaugeVec
	valve      *prometheus.GaugeVec
	batteryLow *prometheus.GaugeVec
	mode       *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total simulation ticks executed.",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_fallbacks_total",
			Help:      "Configuration reads that fell back to defaults, by source.",
		}, []string{"source"}),
		storeWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Reading inserts into the data store, by result.",
		}, []string{"result"}),
		mirrorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_writes_total",
			Help:      "Reading publishes to mirrors, by mirror and result.",
		}, []string{"mirror", "result"}),
		actual: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actual_temperature_celsius",
			Help:      "Last simulated room temperature.",
		}, []string{"device"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "set_temperature_celsius",
			Help:      "Last effective setpoint.",
		}, []string{"device"}),
		valve: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "valve_position_percent",
			Help:      "Last simulated valve opening.",
		}, []string{"device"}),
		batteryLow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_low",
			Help:      "1 while the simulated battery-low episode is active.",
		}, []string{"device"}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "control_mode",
			Help:      "1 for the currently effective control mode.",
		}, []string{"device", "mode"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks,
		m.fallbacks,
		m.storeWrites,
		m.mirrorWrites,
		m.actual,
		m.setpoint,
		m.valve,
		m.batteryLow,
		m.mode,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Tick counts one simulation tick.
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

// Fallback counts a configuration read that used defaults.
func (m *Metrics) Fallback(source string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(source).Inc()
}

// Stored counts a store insert.
func (m *Metrics) Stored(ok bool) {
	if m == nil {
		return
	}
	m.storeWrites.WithLabelValues(result(ok)).Inc()
}

// Mirrored counts a mirror publish.
func (m *Metrics) Mirrored(name string, ok bool) {
	if m == nil {
		return
	}
	m.mirrorWrites.WithLabelValues(name, result(ok)).Inc()
}

// ObserveReading updates the device gauges from r.
func (m *Metrics) ObserveReading(r logic.Reading) {
	if m == nil {
		return
	}
	dev := deviceLabel(r.DeviceID)
	m.actual.WithLabelValues(dev).Set(float64(r.ActualTemperature))
	m.setpoint.WithLabelValues(dev).Set(float64(r.SetTemperature))
	m.valve.WithLabelValues(dev).Set(float64(r.ValvePosition))
	if r.BatteryLow {
		m.batteryLow.WithLabelValues(dev).Set(1)
	} else {
		m.batteryLow.WithLabelValues(dev).Set(0)
	}
	for _, mode := range logic.Modes {
		v := 0.0
		if string(mode) == r.ControlMode {
			v = 1
		}
		m.mode.WithLabelValues(dev, string(mode)).Set(v)
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func deviceLabel(id int) string {
	return strconv.Itoa(id)
}
