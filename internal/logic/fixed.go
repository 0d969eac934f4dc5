package logic

import (
	"fmt"
	"time"
)

// FixedInterval triggers maintenance a fixed calendar interval after the last
// maintenance, regardless of usage.
type FixedInterval struct {
	interval time.Duration
}

// NewFixedInterval creates a calendar strategy.
func NewFixedInterval(interval time.Duration) (*FixedInterval, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: fixed interval must be positive, got %v", ErrConfig, interval)
	}
	return &FixedInterval{interval: interval}, nil
}

func (f *FixedInterval) Type() SensorType { return SensorFixedInterval }

func (f *FixedInterval) needsSource() bool { return false }

// Interval returns the calendar interval.
func (f *FixedInterval) Interval() time.Duration { return f.interval }

func (f *FixedInterval) TurnOn(time.Time)  {}
func (f *FixedInterval) TurnOff(time.Time) {}
func (f *FixedInterval) Update(time.Time)  {}
func (f *FixedInterval) Reset(time.Time)   {}

func (f *FixedInterval) Needed(lastMaintenance, now time.Time) bool {
	if lastMaintenance.IsZero() {
		return true
	}
	return now.Sub(lastMaintenance) >= f.interval
}

func (f *FixedInterval) Predict(lastMaintenance, _ time.Time) (time.Time, bool) {
	if lastMaintenance.IsZero() {
		return time.Time{}, false
	}
	return lastMaintenance.Add(f.interval), true
}

func (f *FixedInterval) UpdateFrequency() time.Duration { return DefaultFixedIntervalUpdateFrequency }

func (f *FixedInterval) encode(map[string]string) {}

func (f *FixedInterval) decode(map[string]string) error { return nil }
