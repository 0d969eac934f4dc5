// Package status provides a thread-safe status tracker for the
// maintenance-monitor daemon. It is written by the run loop and read by HTTP
// handlers and system event publishing.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/maintenance-monitor/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	TopicPrefix string
}

// MonitorSnapshot is a point-in-time view of one monitor.
type MonitorSnapshot struct {
	ID     string
	Name   string
	Type   logic.SensorType
	Source string
	// RawState is the last raw source state seen, "" if none yet.
	RawState string
	On       bool

	MaintenanceNeeded bool
	LastMaintenance   time.Time
	Predicted         time.Time
	HasPredicted      bool

	Interval    time.Duration // runtime and fixed_interval
	Accumulated time.Duration // runtime
	Threshold   int           // count
	TurnOnCount int           // count

	// Attributes is the persisted state map.
	Attributes map[string]string
}

// Capture reads everything displayed about m. It calls into the monitor, so
// it must run on the goroutine that owns m.
func Capture(id, rawState string, m *logic.Monitor) MonitorSnapshot {
	s := MonitorSnapshot{
		ID:                id,
		Name:              m.Name(),
		Type:              m.Type(),
		Source:            m.Source(),
		RawState:          rawState,
		On:                m.IsOn(),
		MaintenanceNeeded: m.MaintenanceNeeded(),
		LastMaintenance:   m.LastMaintenanceDate(),
		Attributes:        m.State(),
	}
	s.Predicted, s.HasPredicted = m.PredictedMaintenanceDate()

	switch st := m.Strategy().(type) {
	case *logic.Runtime:
		s.Interval = st.Interval()
		s.Accumulated = st.Accumulated()
	case *logic.Count:
		s.Threshold = st.Threshold()
		s.TurnOnCount = st.TurnOnCount()
	case *logic.FixedInterval:
		s.Interval = st.Interval()
	}
	return s
}

// Snapshot is a point-in-time view of daemon state.
// It is a copy and safe to use after the lock is released.
type Snapshot struct {
	Monitors      []MonitorSnapshot
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// NeededCount returns how many monitors currently need maintenance.
func (s Snapshot) NeededCount() int {
	n := 0
	for _, m := range s.Monitors {
		if m.MaintenanceNeeded {
			n++
		}
	}
	return n
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	index map[string]int
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		index: make(map[string]int),
	}
}

// SetMonitor inserts or replaces a monitor snapshot. Monitors keep the order
// in which they were first set.
func (t *Tracker) SetMonitor(m MonitorSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.index[m.ID]; ok {
		t.snap.Monitors[i] = m
		return
	}
	t.index[m.ID] = len(t.snap.Monitors)
	t.snap.Monitors = append(t.snap.Monitors, m)
}

// Monitor returns the latest snapshot of one monitor.
func (t *Tracker) Monitor(id string) (MonitorSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return MonitorSnapshot{}, false
	}
	return t.snap.Monitors[i], true
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Monitors = append([]MonitorSnapshot(nil), t.snap.Monitors...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
