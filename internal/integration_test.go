package internal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/sweeney/maintenance-monitor/internal/config"
	"github.com/sweeney/maintenance-monitor/internal/gpio"
	"github.com/sweeney/maintenance-monitor/internal/logic"
	"github.com/sweeney/maintenance-monitor/internal/mqtt"
	"github.com/sweeney/maintenance-monitor/internal/status"
)

const integrationYAML = `
topic_prefix: maintenance
monitors:
  - id: boiler_filter
    name: Boiler filter
    sensor_type: runtime
    interval: 10h
    max_interval: 720h
    source:
      topic: home/boiler/state
    on_states: [heat]
  - id: pump
    sensor_type: count
    count: 3
    source:
      gpio_pin: 16
  - id: descale
    sensor_type: fixed_interval
    interval: 240h
    maintenance_needed_expression: 'needed || now - last_maintenance_date > duration("120h")'
`

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// build creates every configured monitor against clk, keyed by id.
func build(t *testing.T, cfg config.Config, clk *clock) map[string]*logic.Monitor {
	t.Helper()
	out := make(map[string]*logic.Monitor, len(cfg.Monitors))
	for _, mc := range cfg.Monitors {
		m, err := mc.Build(clk.Now, logr.Discard())
		if err != nil {
			t.Fatalf("build %s: %v", mc.ID, err)
		}
		out[mc.ID] = m
	}
	return out
}

func parseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(integrationYAML))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

// TestIntegrationPersistAcrossRestart persists every monitor as a retained
// state message, then restores a fresh set of monitors from the broker.
func TestIntegrationPersistAcrossRestart(t *testing.T) {
	cfg := parseConfig(t)
	topics := mqtt.Topics{Prefix: cfg.TopicPrefix}
	broker := mqtt.NewFakeClient()
	clk := newClock()

	monitors := build(t, cfg, clk)
	monitors["boiler_filter"].HandleStartup("heat")
	clk.Advance(4 * time.Hour)
	monitors["boiler_filter"].Update()
	monitors["pump"].HandleStartup("off")
	monitors["pump"].HandleSourceStateChange("off", "on")
	monitors["pump"].HandleSourceStateChange("on", "off")
	monitors["pump"].HandleSourceStateChange("off", "on")
	monitors["descale"].SetLastMaintenanceDate(time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC))

	ids := make([]string, 0, len(cfg.Monitors))
	for _, mc := range cfg.Monitors {
		ids = append(ids, mc.ID)
		snap := status.Capture(mc.ID, "", monitors[mc.ID])
		if err := broker.Publish(topics.State(mc.ID), 1, true, status.FormatMonitorState(snap)); err != nil {
			t.Fatalf("publish %s: %v", mc.ID, err)
		}
	}

	// A new process starts a day later.
	clk.Advance(24 * time.Hour)
	restored := build(t, cfg, clk)

	stateTopics := make([]string, len(ids))
	for i, id := range ids {
		stateTopics[i] = topics.State(id)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	payloads, err := mqtt.CollectRetained(ctx, broker, stateTopics)
	if err != nil {
		t.Fatalf("collect retained: %v", err)
	}
	if len(payloads) != len(ids) {
		t.Fatalf("expected %d retained states, got %d", len(ids), len(payloads))
	}
	for _, id := range ids {
		attrs, err := status.ParseAttributes(payloads[topics.State(id)])
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if err := restored[id].RestoreState(attrs); err != nil {
			t.Fatalf("%s: restore: %v", id, err)
		}
	}

	filter := status.Capture("boiler_filter", "", restored["boiler_filter"])
	if filter.Accumulated != 4*time.Hour {
		t.Errorf("boiler_filter runtime: got %v, want 4h", filter.Accumulated)
	}
	if got := logic.FormatDate(filter.LastMaintenance); got != "2026-01-01" {
		t.Errorf("boiler_filter last maintenance: got %s", got)
	}
	if filter.On {
		t.Error("on/off state is not persisted; restored monitor should start off")
	}

	pump := status.Capture("pump", "", restored["pump"])
	if pump.TurnOnCount != 2 {
		t.Errorf("pump count: got %d, want 2", pump.TurnOnCount)
	}
	restored["pump"].HandleStartup("on")
	if !restored["pump"].MaintenanceNeeded() {
		t.Error("pump should reach its threshold with one more turn-on")
	}

	descale := status.Capture("descale", "", restored["descale"])
	if got := logic.FormatDate(descale.LastMaintenance); got != "2025-12-30" {
		t.Errorf("descale last maintenance: got %s", got)
	}
}

// TestIntegrationGPIOToEngine feeds debounced GPIO changes into a count
// monitor the way the daemon's poll loop does.
func TestIntegrationGPIOToEngine(t *testing.T) {
	cfg := parseConfig(t)
	clk := newClock()
	pump := build(t, cfg, clk)["pump"]

	var samples []map[int]bool
	for _, on := range []bool{false, true, false, true, false, true} {
		for i := 0; i < 4; i++ {
			samples = append(samples, map[int]bool{16: on})
		}
	}
	reader := gpio.NewFakeReader(samples...)
	debouncer := gpio.NewDebouncer(cfg.Debounce.D())

	var last string
	for range samples {
		sample, err := reader.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		for _, c := range debouncer.Process(sample, clk.Now()) {
			state := gpio.StateString(c.On)
			if c.Baseline {
				pump.HandleStartup(state)
			} else {
				pump.HandleSourceStateChange(last, state)
			}
			last = state
		}
		clk.Advance(cfg.Poll.D())
	}

	snap := status.Capture("pump", last, pump)
	if snap.TurnOnCount != 3 {
		t.Errorf("turn-ons: got %d, want 3", snap.TurnOnCount)
	}
	if !snap.MaintenanceNeeded {
		t.Error("expected maintenance needed at threshold 3")
	}
}

// TestIntegrationExpressionOverride checks a configured CEL override takes
// precedence over the fixed interval.
func TestIntegrationExpressionOverride(t *testing.T) {
	cfg := parseConfig(t)
	clk := newClock()
	descale := build(t, cfg, clk)["descale"]

	clk.Advance(100 * time.Hour)
	if descale.MaintenanceNeeded() {
		t.Error("not needed at 100h")
	}
	clk.Advance(24 * time.Hour)
	if !descale.MaintenanceNeeded() {
		t.Error("override should force maintenance after 120h")
	}
	// A predicted date is not persisted while maintenance is needed.
	if _, ok := descale.State()[logic.KeyPredictedMaintenanceDate]; ok {
		t.Error("predicted date persisted while maintenance is needed")
	}
}

// TestIntegrationStatusEvent publishes a system event built from tracked
// monitors and checks what a consumer would decode.
func TestIntegrationStatusEvent(t *testing.T) {
	cfg := parseConfig(t)
	clk := newClock()
	monitors := build(t, cfg, clk)
	tracker := status.NewTracker(clk.Now(), status.Config{Broker: cfg.Broker, TopicPrefix: cfg.TopicPrefix})
	client := mqtt.NewFakeClient()
	topics := mqtt.Topics{Prefix: cfg.TopicPrefix}

	monitors["boiler_filter"].HandleStartup("heat")
	clk.Advance(11 * time.Hour)
	monitors["boiler_filter"].Update()
	for _, mc := range cfg.Monitors {
		tracker.SetMonitor(status.Capture(mc.ID, "", monitors[mc.ID]))
	}
	tracker.SetMQTTConnected(client.IsConnected())

	err := mqtt.PublishSystem(client, topics, mqtt.SystemEvent{
		Timestamp:  clk.Now(),
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", ""),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs := client.On(topics.System())
	if len(msgs) != 1 || !msgs[0].Retained {
		t.Fatalf("expected one retained system message, got %+v", msgs)
	}
	var got status.StatusJSON
	if err := json.Unmarshal(msgs[0].Payload, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Status.Event != "STARTUP" {
		t.Errorf("event: got %q", got.Status.Event)
	}
	if got.Status.NeededCount != 1 {
		t.Errorf("maintenance_needed_count: got %d, want 1", got.Status.NeededCount)
	}
	if len(got.Status.Monitors) != 3 {
		t.Fatalf("expected 3 monitors, got %d", len(got.Status.Monitors))
	}
	filter := got.Status.Monitors[0]
	if filter.ID != "boiler_filter" || !filter.MaintenanceNeeded {
		t.Errorf("boiler_filter: %+v", filter)
	}
	if filter.RuntimeSeconds == nil || *filter.RuntimeSeconds != 11*3600 {
		t.Errorf("runtime_seconds: got %v", filter.RuntimeSeconds)
	}
}
