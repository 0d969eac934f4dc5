package logic

import (
	"testing"
	"time"
)

func TestCountScenario(t *testing.T) {
	clock := newFakeClock()
	c := mustCount(t, 3)
	m := newTestMonitor(t, clock, c)
	m.HandleStartup("off")

	transitions := [][2]string{
		{"off", "on"},
		{"on", "off"},
		{"off", "on"},
		{"on", "off"},
		{"off", "on"},
	}
	for i, tr := range transitions {
		clock.Advance(time.Minute)
		m.HandleSourceStateChange(tr[0], tr[1])
		if i < len(transitions)-1 && m.MaintenanceNeeded() {
			t.Errorf("transition %d: maintenance needed too early", i)
		}
	}
	if c.TurnOnCount() != 3 {
		t.Errorf("expected 3 turn-ons, got %d", c.TurnOnCount())
	}
	if !m.MaintenanceNeeded() {
		t.Error("expected maintenance needed at threshold")
	}
}

func TestCountInterleavedNoops(t *testing.T) {
	clock := newFakeClock()
	c := mustCount(t, 100)
	m := newTestMonitor(t, clock, c)
	m.HandleStartup("off")

	const n = 7
	for i := 0; i < n; i++ {
		m.HandleSourceStateChange("off", "off")
		m.HandleSourceStateChange("off", "on")
		m.HandleSourceStateChange("on", "on")
		m.HandleSourceStateChange("on", "heat")
		m.HandleSourceStateChange("heat", "off")
		m.HandleSourceStateChange("off", "unavailable")
	}
	if c.TurnOnCount() != n {
		t.Errorf("expected %d turn-ons, got %d", n, c.TurnOnCount())
	}
}

func TestCountUpdateIsNoop(t *testing.T) {
	clock := newFakeClock()
	c := mustCount(t, 2)
	m := newTestMonitor(t, clock, c)
	m.HandleStartup("on")
	for i := 0; i < 5; i++ {
		clock.Advance(time.Hour)
		m.Update()
	}
	if c.TurnOnCount() != 1 {
		t.Errorf("expected 1, got %d", c.TurnOnCount())
	}
}

func TestCountPrediction(t *testing.T) {
	clock := newFakeClock()
	c := mustCount(t, 10)
	m := newTestMonitor(t, clock, c)
	m.HandleStartup("off")

	m.HandleSourceStateChange("off", "on")
	m.HandleSourceStateChange("on", "off")
	m.HandleSourceStateChange("off", "on")
	clock.Advance(24 * time.Hour)

	// Two per day, eight remaining: four more days.
	p, ok := m.PredictedMaintenanceDate()
	if !ok {
		t.Fatal("expected a prediction")
	}
	want := clock.now.Add(4 * 24 * time.Hour)
	if !p.Equal(want) {
		t.Errorf("expected %v, got %v", want, p)
	}
}

func TestCountPredictionGuards(t *testing.T) {
	clock := newFakeClock()
	c := mustCount(t, 10)
	m := newTestMonitor(t, clock, c)
	m.HandleStartup("off")
	m.HandleSourceStateChange("off", "on")

	if _, ok := m.PredictedMaintenanceDate(); ok {
		t.Error("expected no prediction with zero elapsed days")
	}

	m.Reset(nil)
	clock.Advance(72 * time.Hour)
	if _, ok := m.PredictedMaintenanceDate(); ok {
		t.Error("expected no prediction with zero turn-ons")
	}
}

func TestCountPredictionAnchorInFuture(t *testing.T) {
	clock := newFakeClock()
	c := mustCount(t, 10)
	m := newTestMonitor(t, clock, c)
	m.HandleStartup("on")
	m.SetLastMaintenanceDate(clock.now.Add(48 * time.Hour))
	if _, ok := m.PredictedMaintenanceDate(); ok {
		t.Error("expected no prediction before the anchor date")
	}
}

func TestCountPredictionOverdue(t *testing.T) {
	clock := newFakeClock()
	c := mustCount(t, 2)
	m := newTestMonitor(t, clock, c)
	m.HandleStartup("off")
	for i := 0; i < 4; i++ {
		m.HandleSourceStateChange("off", "on")
		m.HandleSourceStateChange("on", "off")
	}
	clock.Advance(48 * time.Hour)

	p, ok := m.PredictedMaintenanceDate()
	if !ok {
		t.Fatal("expected a prediction")
	}
	want := clock.now.Add(-24 * time.Hour)
	if !p.Equal(want) {
		t.Errorf("expected %v, got %v", want, p)
	}
}
