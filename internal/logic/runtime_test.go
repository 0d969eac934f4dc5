package logic

import (
	"errors"
	"testing"
	"time"
)

func TestRuntimeSingleCycle(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, 10*time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	m.HandleSourceStateChange("off", "on")
	clock.Advance(90 * time.Minute)
	m.HandleSourceStateChange("on", "off")

	if r.Accumulated() != 90*time.Minute {
		t.Errorf("expected 90m, got %v", r.Accumulated())
	}
	if r.Running() {
		t.Error("expected on-period closed after turn off")
	}
}

func TestRuntimeCyclesAccumulate(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	// on at 0s, off at 1800s, on at 2000s, off at 3800s
	m.HandleSourceStateChange("off", "on")
	clock.Advance(1800 * time.Second)
	m.HandleSourceStateChange("on", "off")
	clock.Advance(200 * time.Second)
	m.HandleSourceStateChange("off", "on")
	clock.Advance(1799 * time.Second)
	if m.MaintenanceNeeded() {
		t.Error("maintenance should not be needed before the second off event")
	}
	clock.Advance(time.Second)
	m.HandleSourceStateChange("on", "off")

	if r.Accumulated() != 3600*time.Second {
		t.Errorf("expected 3600s, got %v", r.Accumulated())
	}
	if !m.MaintenanceNeeded() {
		t.Error("expected maintenance needed at threshold")
	}
}

func TestRuntimeUpdateDoesNotDoubleCount(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, 10*time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	m.HandleSourceStateChange("off", "on")
	clock.Advance(time.Hour)
	m.Update()
	if r.Accumulated() != time.Hour {
		t.Errorf("after first update: expected 1h, got %v", r.Accumulated())
	}
	clock.Advance(30 * time.Minute)
	m.Update()
	if r.Accumulated() != 90*time.Minute {
		t.Errorf("after second update: expected 90m, got %v", r.Accumulated())
	}
	clock.Advance(15 * time.Minute)
	m.HandleSourceStateChange("on", "off")
	if r.Accumulated() != 105*time.Minute {
		t.Errorf("after off: expected 105m, got %v", r.Accumulated())
	}

	// Ticks while off add nothing.
	clock.Advance(time.Hour)
	m.Update()
	if r.Accumulated() != 105*time.Minute {
		t.Errorf("update while off: expected 105m, got %v", r.Accumulated())
	}
}

func TestRuntimeStartupOnAccrues(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, 10*time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("heat")

	clock.Advance(20 * time.Minute)
	m.Update()
	if r.Accumulated() != 20*time.Minute {
		t.Errorf("expected 20m, got %v", r.Accumulated())
	}
}

func TestRuntimeOffWithoutOnIsNoop(t *testing.T) {
	r := mustRuntime(t, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.TurnOff(now)
	if r.Accumulated() != 0 {
		t.Errorf("expected 0, got %v", r.Accumulated())
	}
}

func TestRuntimeClockBackwardsAddsNothing(t *testing.T) {
	r := mustRuntime(t, time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.TurnOn(now)
	r.Update(now.Add(-time.Minute))
	if r.Accumulated() != 0 {
		t.Errorf("expected 0, got %v", r.Accumulated())
	}
	r.TurnOff(now.Add(4 * time.Minute))
	if r.Accumulated() != 5*time.Minute {
		t.Errorf("expected 5m from the re-anchored start, got %v", r.Accumulated())
	}
}

func TestRuntimeResetWhileOnReanchors(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	m.HandleSourceStateChange("off", "on")
	clock.Advance(2 * time.Hour)
	m.Reset(nil)
	if r.Accumulated() != 0 {
		t.Errorf("expected 0 after reset, got %v", r.Accumulated())
	}
	if !r.Running() {
		t.Error("expected on-period to continue after reset")
	}
	clock.Advance(10 * time.Minute)
	m.HandleSourceStateChange("on", "off")
	if r.Accumulated() != 10*time.Minute {
		t.Errorf("expected 10m accrued from reset point, got %v", r.Accumulated())
	}
}

func TestRuntimeResetWhileOffStaysOff(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")
	m.Reset(nil)
	if r.Running() {
		t.Error("reset while off must not open an on-period")
	}
}

func TestRuntimePrediction(t *testing.T) {
	clock := newFakeClock()
	anchor := clock.now
	r := mustRuntime(t, 100*time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	m.HandleSourceStateChange("off", "on")
	clock.Advance(10 * time.Hour)
	m.HandleSourceStateChange("on", "off")
	clock.Advance(14 * time.Hour)

	// 10h per day, 90h remaining: 9 more days.
	p, ok := m.PredictedMaintenanceDate()
	if !ok {
		t.Fatal("expected a prediction")
	}
	want := anchor.Add(10 * 24 * time.Hour)
	if !p.Equal(want) {
		t.Errorf("expected %v, got %v", want, p)
	}
}

func TestRuntimePredictionGuards(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	if _, ok := m.PredictedMaintenanceDate(); ok {
		t.Error("expected no prediction with zero elapsed time")
	}
	clock.Advance(48 * time.Hour)
	if _, ok := m.PredictedMaintenanceDate(); ok {
		t.Error("expected no prediction with zero usage")
	}
}

func TestRuntimePredictionOverdue(t *testing.T) {
	clock := newFakeClock()
	r := mustRuntime(t, time.Hour)
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	m.HandleSourceStateChange("off", "on")
	clock.Advance(2 * time.Hour)
	m.HandleSourceStateChange("on", "off")
	clock.Advance(22 * time.Hour)

	p, ok := m.PredictedMaintenanceDate()
	if !ok {
		t.Fatal("expected a prediction")
	}
	if !p.Before(clock.now) {
		t.Errorf("expected overdue prediction before %v, got %v", clock.now, p)
	}
}

func TestRuntimeMinMaxInterval(t *testing.T) {
	clock := newFakeClock()
	r, err := NewRuntime(time.Hour, 2*24*time.Hour, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	m.HandleSourceStateChange("off", "on")
	clock.Advance(3 * time.Hour)
	m.HandleSourceStateChange("on", "off")
	if m.MaintenanceNeeded() {
		t.Error("min interval should suppress maintenance")
	}
	clock.Advance(2 * 24 * time.Hour)
	if !m.MaintenanceNeeded() {
		t.Error("expected maintenance needed after min interval")
	}

	m.Reset(nil)
	clock.Advance(30 * 24 * time.Hour)
	if !m.MaintenanceNeeded() {
		t.Error("max interval should force maintenance without usage")
	}
}

func TestRuntimePredictionClamped(t *testing.T) {
	clock := newFakeClock()
	anchor := clock.now
	r, err := NewRuntime(1000*time.Hour, 0, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	m := newTestMonitor(t, clock, r)
	m.HandleStartup("off")

	// No usage yet: prediction falls back to the max bound.
	clock.Advance(24 * time.Hour)
	p, ok := m.PredictedMaintenanceDate()
	if !ok || !p.Equal(anchor.Add(7*24*time.Hour)) {
		t.Errorf("expected max bound, got %v (%v)", p, ok)
	}

	// Low usage extrapolates far beyond the max bound.
	m.HandleSourceStateChange("off", "on")
	clock.Advance(time.Hour)
	m.HandleSourceStateChange("on", "off")
	p, ok = m.PredictedMaintenanceDate()
	if !ok || !p.Equal(anchor.Add(7*24*time.Hour)) {
		t.Errorf("expected clamp to max bound, got %v (%v)", p, ok)
	}
}

func TestNewRuntimeValidation(t *testing.T) {
	tests := []struct {
		name               string
		interval, min, max time.Duration
	}{
		{"zero interval", 0, 0, 0},
		{"negative min", time.Hour, -time.Hour, 0},
		{"min above max", time.Hour, 10 * time.Hour, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuntime(tt.interval, tt.min, tt.max)
			if !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}
