// Package logic contains the pure maintenance-tracking state machine.
// This package has NO transport dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via a Clock.
package logic

import (
	"errors"
	"time"
)

// SensorType selects the strategy used to measure wear.
type SensorType string

const (
	SensorRuntime       SensorType = "runtime"
	SensorCount         SensorType = "count"
	SensorFixedInterval SensorType = "fixed_interval"
)

// Valid reports whether t names an implemented strategy.
func (t SensorType) Valid() bool {
	switch t {
	case SensorRuntime, SensorCount, SensorFixedInterval:
		return true
	}
	return false
}

// Persisted state keys.
const (
	KeyLastMaintenanceDate      = "last_maintenance_date"
	KeyPredictedMaintenanceDate = "predicted_maintenance_date"
	KeyRuntimeDuration          = "runtime_duration"
	KeyTurnOnCount              = "device_turn_on_count"
)

// DateFormat is the layout used for every persisted date.
const DateFormat = "2006-01-02"

// Tick frequencies requested by the time-driven strategies.
const (
	DefaultRuntimeUpdateFrequency       = time.Minute
	DefaultFixedIntervalUpdateFrequency = 10 * time.Minute
)

// DefaultOnStates are the raw states treated as "on" when no allow-list is configured.
var DefaultOnStates = []string{"on", "dry", "cool", "heat_cool", "heat"}

// Clock returns the current time.
type Clock func() time.Time

var (
	// ErrConfig is returned when a monitor cannot be built from its configuration.
	ErrConfig = errors.New("invalid monitor configuration")
	// ErrRestoreParse wraps every persisted field that failed to parse.
	ErrRestoreParse = errors.New("unparsable persisted value")
)

// NeededOverride may replace the strategy's maintenance-needed value.
// It returns ok=false when it has no opinion.
type NeededOverride func(needed bool, lastMaintenance, now time.Time) (value bool, ok bool)

// PredictedOverride may replace the strategy's predicted date. predicted is
// nil when the strategy has no prediction. It returns ok=false when it has no
// opinion.
type PredictedOverride func(predicted *time.Time, lastMaintenance, now time.Time) (value time.Time, ok bool)
