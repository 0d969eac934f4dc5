package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/maintenance-monitor/internal/logic"
	"github.com/sweeney/maintenance-monitor/internal/status"
)

var last = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestObserveRuntime(t *testing.T) {
	m := New()
	m.Observe(status.MonitorSnapshot{
		ID:              "boiler_filter",
		Type:            logic.SensorRuntime,
		On:              true,
		LastMaintenance: last,
		Predicted:       last.AddDate(0, 3, 0),
		HasPredicted:    true,
		Accumulated:     90 * time.Minute,
	})

	if got := testutil.ToFloat64(m.On.WithLabelValues("boiler_filter", "runtime")); got != 1 {
		t.Errorf("device_on: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Needed.WithLabelValues("boiler_filter", "runtime")); got != 0 {
		t.Errorf("maintenance_needed: got %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.RuntimeSeconds.WithLabelValues("boiler_filter")); got != 5400 {
		t.Errorf("runtime_seconds: got %v, want 5400", got)
	}
	if got := testutil.ToFloat64(m.LastMaintenance.WithLabelValues("boiler_filter", "runtime")); got != float64(last.Unix()) {
		t.Errorf("last_maintenance: got %v", got)
	}
	if testutil.CollectAndCount(m.TurnOnCount) != 0 {
		t.Error("runtime monitor should not set turn_on_count")
	}
}

func TestObservePredictionRemoved(t *testing.T) {
	m := New()
	s := status.MonitorSnapshot{
		ID:           "pump",
		Type:         logic.SensorCount,
		Predicted:    last.AddDate(0, 1, 0),
		HasPredicted: true,
		TurnOnCount:  7,
	}
	m.Observe(s)
	if testutil.CollectAndCount(m.Predicted) != 1 {
		t.Fatal("expected predicted series")
	}
	if got := testutil.ToFloat64(m.TurnOnCount.WithLabelValues("pump")); got != 7 {
		t.Errorf("turn_on_count: got %v, want 7", got)
	}

	s.HasPredicted = false
	s.MaintenanceNeeded = true
	m.Observe(s)
	if testutil.CollectAndCount(m.Predicted) != 0 {
		t.Error("predicted series should be removed without a prediction")
	}
	if got := testutil.ToFloat64(m.Needed.WithLabelValues("pump", "count")); got != 1 {
		t.Errorf("maintenance_needed: got %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.Reset("pump", "mqtt")
	m.Reset("pump", "http")
	m.Reset("pump", "http")
	m.Transition("pump")
	m.PublishFailed()
	m.SetConnected(true)

	if got := testutil.ToFloat64(m.ResetsTotal.WithLabelValues("pump", "http")); got != 2 {
		t.Errorf("resets_total http: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("pump")); got != 1 {
		t.Errorf("transitions_total: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PublishErrors); got != 1 {
		t.Errorf("publish errors: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MQTTConnected); got != 1 {
		t.Errorf("mqtt_connected: got %v, want 1", got)
	}
}

func TestNewIsIndependent(t *testing.T) {
	// Each instance owns its registry; constructing twice must not panic.
	a, b := New(), New()
	a.PublishFailed()
	if got := testutil.ToFloat64(b.PublishErrors); got != 0 {
		t.Errorf("instances should not share collectors, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe(status.MonitorSnapshot{ID: "descale", Type: logic.SensorFixedInterval, MaintenanceNeeded: true, LastMaintenance: last})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if rec.Code != 200 {
		t.Fatalf("status: got %d", rec.Code)
	}
	want := `maintenance_monitor_maintenance_needed{monitor="descale",sensor_type="fixed_interval"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("exposition missing %q", want)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected Go runtime collector output")
	}
}
