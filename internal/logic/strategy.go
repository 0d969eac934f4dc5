package logic

import (
	"fmt"
	"time"
)

// Strategy measures wear for a Monitor. The set of implementations is closed:
// Runtime, Count and FixedInterval.
type Strategy interface {
	Type() SensorType
	// TurnOn and TurnOff are called on classified transitions.
	TurnOn(now time.Time)
	TurnOff(now time.Time)
	// Update rolls forward any counter accruing between transitions.
	Update(now time.Time)
	// Reset clears usage counters.
	Reset(now time.Time)
	Needed(lastMaintenance, now time.Time) bool
	Predict(lastMaintenance, now time.Time) (time.Time, bool)
	// UpdateFrequency is the tick interval required, 0 for none.
	UpdateFrequency() time.Duration

	needsSource() bool
	encode(state map[string]string)
	decode(state map[string]string) error
}

// StrategyConfig carries the thresholds for every strategy type; only the
// fields relevant to Type are read.
type StrategyConfig struct {
	Type        SensorType
	Interval    time.Duration
	MinInterval time.Duration
	MaxInterval time.Duration
	Count       int
}

// NewStrategy builds the strategy named by cfg.Type.
func NewStrategy(cfg StrategyConfig) (Strategy, error) {
	switch cfg.Type {
	case SensorRuntime:
		return NewRuntime(cfg.Interval, cfg.MinInterval, cfg.MaxInterval)
	case SensorCount:
		return NewCount(cfg.Count)
	case SensorFixedInterval:
		return NewFixedInterval(cfg.Interval)
	case "":
		return nil, fmt.Errorf("%w: sensor_type is required", ErrConfig)
	default:
		return nil, fmt.Errorf("%w: sensor_type %q is not implemented", ErrConfig, cfg.Type)
	}
}
