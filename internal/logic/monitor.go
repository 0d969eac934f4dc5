package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Options configures a Monitor.
type Options struct {
	Name string
	// Source identifies the observed entity; empty for manual-only monitors.
	Source   string
	Strategy Strategy
	// OnStates is the raw-state allow-list; ignored when OnPredicate is set.
	OnStates    []string
	OnPredicate func(state string) bool

	NeededOverride    NeededOverride
	PredictedOverride PredictedOverride

	// LastMaintenance is the initial anchor; zero means construction time.
	LastMaintenance time.Time
	Clock           Clock
	Logger          logr.Logger
}

// Monitor is one configured maintenance engine. It is not safe for
// concurrent use; the owner must serialize every call.
type Monitor struct {
	name     string
	source   string
	strategy Strategy
	tracker  TransitionTracker

	neededOverride    NeededOverride
	predictedOverride PredictedOverride

	lastMaintenance time.Time
	clock           Clock
	log             logr.Logger
}

// NewMonitor validates opts and creates a Monitor.
func NewMonitor(opts Options) (*Monitor, error) {
	if opts.Strategy == nil {
		return nil, fmt.Errorf("%w: strategy is required", ErrConfig)
	}
	if opts.Strategy.needsSource() && opts.Source == "" {
		return nil, fmt.Errorf("%w: %s monitor %q requires a source", ErrConfig, opts.Strategy.Type(), opts.Name)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	anchor := opts.LastMaintenance
	if anchor.IsZero() {
		anchor = clock()
	}
	return &Monitor{
		name:              opts.Name,
		source:            opts.Source,
		strategy:          opts.Strategy,
		tracker:           TransitionTracker{Classifier: NewClassifier(opts.OnStates, opts.OnPredicate)},
		neededOverride:    opts.NeededOverride,
		predictedOverride: opts.PredictedOverride,
		lastMaintenance:   anchor,
		clock:             clock,
		log:               log.WithValues("monitor", opts.Name),
	}, nil
}

func (m *Monitor) Name() string { return m.name }

// Source returns the observed entity, empty if none.
func (m *Monitor) Source() string { return m.source }

func (m *Monitor) Type() SensorType { return m.strategy.Type() }

// Strategy exposes the strategy for reading its counters.
func (m *Monitor) Strategy() Strategy { return m.strategy }

// LastMaintenanceDate returns the anchor date.
func (m *Monitor) LastMaintenanceDate() time.Time { return m.lastMaintenance }

// IsOn returns the last processed on/off value.
func (m *Monitor) IsOn() bool { return m.tracker.LastOn }

// UpdateFrequency is how often Update should be called, 0 for never.
func (m *Monitor) UpdateFrequency() time.Duration { return m.strategy.UpdateFrequency() }

// HandleStartup seeds the on/off state from the source's current raw state.
func (m *Monitor) HandleStartup(state string) {
	var on bool
	m.tracker, on = m.tracker.Startup(state)
	m.log.V(1).Info("startup", "state", state, "on", on)
	m.dispatch(on)
}

// HandleSourceStateChange processes a raw state transition. Transitions that
// do not change the classified value are ignored.
func (m *Monitor) HandleSourceStateChange(oldState, newState string) {
	next, on, changed := m.tracker.Transition(oldState, newState)
	m.log.V(1).Info("state change", "old", oldState, "new", newState, "on", on, "changed", changed)
	if !changed {
		return
	}
	m.tracker = next
	m.dispatch(on)
}

func (m *Monitor) dispatch(on bool) {
	now := m.clock()
	if on {
		m.strategy.TurnOn(now)
	} else {
		m.strategy.TurnOff(now)
	}
}

// Update rolls forward time-accruing counters. Call it every UpdateFrequency.
func (m *Monitor) Update() {
	m.strategy.Update(m.clock())
}

// Reset records a maintenance at explicit, or now when explicit is nil, and
// clears the usage counters.
func (m *Monitor) Reset(explicit *time.Time) {
	now := m.clock()
	m.lastMaintenance = now
	if explicit != nil {
		m.lastMaintenance = *explicit
	}
	m.strategy.Reset(now)
	m.log.Info("maintenance reset", "last_maintenance_date", FormatDate(m.lastMaintenance))
}

// SetLastMaintenanceDate corrects the anchor without touching counters.
func (m *Monitor) SetLastMaintenanceDate(t time.Time) {
	m.lastMaintenance = t
	m.log.Info("last maintenance date set", "last_maintenance_date", FormatDate(t))
}

// MaintenanceNeeded evaluates the strategy at the current time, then the
// override if one is configured and has an opinion.
func (m *Monitor) MaintenanceNeeded() bool {
	now := m.clock()
	needed := m.strategy.Needed(m.lastMaintenance, now)
	if m.neededOverride != nil {
		if v, ok := m.neededOverride(needed, m.lastMaintenance, now); ok {
			return v
		}
	}
	return needed
}

// PredictedMaintenanceDate returns the extrapolated due date, if any.
func (m *Monitor) PredictedMaintenanceDate() (time.Time, bool) {
	now := m.clock()
	p, ok := m.strategy.Predict(m.lastMaintenance, now)
	if m.predictedOverride != nil {
		var in *time.Time
		if ok {
			in = &p
		}
		if v, vok := m.predictedOverride(in, m.lastMaintenance, now); vok {
			return v, true
		}
	}
	return p, ok
}

// State returns the persisted representation of the monitor.
func (m *Monitor) State() map[string]string {
	state := make(map[string]string, 3)
	m.strategy.encode(state)
	state[KeyLastMaintenanceDate] = FormatDate(m.lastMaintenance)
	if !m.MaintenanceNeeded() {
		if p, ok := m.PredictedMaintenanceDate(); ok {
			state[KeyPredictedMaintenanceDate] = FormatDate(p)
		}
	}
	return state
}

// RestoreState applies a persisted state. Missing keys leave values
// unchanged. Unparsable fields are skipped and reported together, wrapped
// in ErrRestoreParse; the remaining fields are still applied.
func (m *Monitor) RestoreState(state map[string]string) error {
	var errs []error
	if raw := state[KeyLastMaintenanceDate]; raw != "" {
		t, err := ParseDate(raw, m.clock().Location())
		if err != nil {
			errs = append(errs, restoreErr(KeyLastMaintenanceDate, raw, err))
		} else {
			m.lastMaintenance = t
		}
	}
	if err := m.strategy.decode(state); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		m.log.Error(err, "restore state")
	}
	return err
}
