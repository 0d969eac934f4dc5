// Package metrics exposes monitor state as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/maintenance-monitor/internal/logic"
	"github.com/sweeney/maintenance-monitor/internal/status"
)

const metricPrefix = "maintenance_monitor_"

// Metrics bundles the daemon's collectors and the registry serving them.
type Metrics struct {
	Needed          *prometheus.GaugeVec
	On              *prometheus.GaugeVec
	RuntimeSeconds  *prometheus.GaugeVec
	TurnOnCount     *prometheus.GaugeVec
	LastMaintenance *prometheus.GaugeVec
	Predicted       *prometheus.GaugeVec

	ResetsTotal      *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	PublishErrors    prometheus.Counter
	MQTTConnected    prometheus.Gauge

	registry *prometheus.Registry
}

// New constructs the collectors and registers them, plus the Go runtime and
// process collectors, on a private registry.
func New() *Metrics {
	monitorLabels := []string{"monitor", "sensor_type"}
	m := &Metrics{
		Needed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "maintenance_needed",
			Help: "1 if the monitor currently needs maintenance",
		}, monitorLabels),
		On: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "device_on",
			Help: "1 if the monitored device is classified as on",
		}, monitorLabels),
		RuntimeSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "runtime_seconds",
			Help: "Accumulated on-time since the last maintenance",
		}, []string{"monitor"}),
		TurnOnCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "turn_on_count",
			Help: "Off-to-on transitions since the last maintenance",
		}, []string{"monitor"}),
		LastMaintenance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "last_maintenance_timestamp_seconds",
			Help: "Unix time of the last recorded maintenance",
		}, monitorLabels),
		Predicted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "predicted_maintenance_timestamp_seconds",
			Help: "Unix time maintenance is predicted to be due; absent without a prediction",
		}, monitorLabels),
		ResetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "resets_total",
			Help: "Maintenance resets by monitor and origin",
		}, []string{"monitor", "origin"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "source_transitions_total",
			Help: "Raw source state changes delivered to a monitor",
		}, []string{"monitor"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "mqtt_publish_errors_total",
			Help: "Failed MQTT publishes",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "mqtt_connected",
			Help: "1 while the broker connection is open",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.Needed,
		m.On,
		m.RuntimeSeconds,
		m.TurnOnCount,
		m.LastMaintenance,
		m.Predicted,
		m.ResetsTotal,
		m.TransitionsTotal,
		m.PublishErrors,
		m.MQTTConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe sets the gauges for one monitor snapshot.
func (m *Metrics) Observe(s status.MonitorSnapshot) {
	typ := string(s.Type)
	m.Needed.WithLabelValues(s.ID, typ).Set(boolFloat(s.MaintenanceNeeded))
	m.On.WithLabelValues(s.ID, typ).Set(boolFloat(s.On))
	m.LastMaintenance.WithLabelValues(s.ID, typ).Set(float64(s.LastMaintenance.Unix()))
	if s.HasPredicted {
		m.Predicted.WithLabelValues(s.ID, typ).Set(float64(s.Predicted.Unix()))
	} else {
		m.Predicted.DeleteLabelValues(s.ID, typ)
	}
	switch s.Type {
	case logic.SensorRuntime:
		m.RuntimeSeconds.WithLabelValues(s.ID).Set(s.Accumulated.Seconds())
	case logic.SensorCount:
		m.TurnOnCount.WithLabelValues(s.ID).Set(float64(s.TurnOnCount))
	}
}

// Reset counts one maintenance reset; origin is "mqtt" or "http".
func (m *Metrics) Reset(monitor, origin string) {
	m.ResetsTotal.WithLabelValues(monitor, origin).Inc()
}

// Transition counts one raw source state change.
func (m *Metrics) Transition(monitor string) {
	m.TransitionsTotal.WithLabelValues(monitor).Inc()
}

// PublishFailed counts one failed MQTT publish.
func (m *Metrics) PublishFailed() { m.PublishErrors.Inc() }

// SetConnected records the broker connection state.
func (m *Metrics) SetConnected(c bool) { m.MQTTConnected.Set(boolFloat(c)) }

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
