package logic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Runtime triggers maintenance after the device has been on for a total of
// Interval. Optional calendar bounds force or suppress the trigger.
type Runtime struct {
	interval    time.Duration
	minInterval time.Duration
	maxInterval time.Duration

	accumulated time.Duration
	lastOn      *time.Time
}

// NewRuntime creates a runtime strategy. minInterval and maxInterval are
// optional (0 disables them).
func NewRuntime(interval, minInterval, maxInterval time.Duration) (*Runtime, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: runtime interval must be positive, got %v", ErrConfig, interval)
	}
	if minInterval < 0 || maxInterval < 0 {
		return nil, fmt.Errorf("%w: min/max interval must not be negative", ErrConfig)
	}
	if minInterval > 0 && maxInterval > 0 && minInterval > maxInterval {
		return nil, fmt.Errorf("%w: min interval %v exceeds max interval %v", ErrConfig, minInterval, maxInterval)
	}
	return &Runtime{interval: interval, minInterval: minInterval, maxInterval: maxInterval}, nil
}

func (r *Runtime) Type() SensorType { return SensorRuntime }

func (r *Runtime) needsSource() bool { return true }

// Interval returns the runtime threshold.
func (r *Runtime) Interval() time.Duration { return r.interval }

// Accumulated returns the runtime realised so far. Time since the last
// turn-on is only included after Update or TurnOff.
func (r *Runtime) Accumulated() time.Duration { return r.accumulated }

// Running reports whether an on-period is open.
func (r *Runtime) Running() bool { return r.lastOn != nil }

func (r *Runtime) TurnOn(now time.Time) {
	r.lastOn = &now
}

func (r *Runtime) TurnOff(now time.Time) {
	if r.lastOn == nil {
		return
	}
	r.accrue(now)
	r.lastOn = nil
}

func (r *Runtime) Update(now time.Time) {
	if r.lastOn == nil {
		return
	}
	r.accrue(now)
	r.lastOn = &now
}

// accrue adds the open on-period up to now. A clock stepping backwards adds
// nothing.
func (r *Runtime) accrue(now time.Time) {
	if d := now.Sub(*r.lastOn); d > 0 {
		r.accumulated += d
	}
}

func (r *Runtime) Reset(now time.Time) {
	r.accumulated = 0
	if r.lastOn != nil {
		r.lastOn = &now
	}
}

func (r *Runtime) Needed(lastMaintenance, now time.Time) bool {
	elapsed := now.Sub(lastMaintenance)
	if r.maxInterval > 0 && elapsed >= r.maxInterval {
		return true
	}
	if r.minInterval > 0 && elapsed < r.minInterval {
		return false
	}
	return r.accumulated >= r.interval
}

func (r *Runtime) Predict(lastMaintenance, now time.Time) (time.Time, bool) {
	p, ok := extrapolate(lastMaintenance, now, r.accumulated.Seconds(), r.interval.Seconds())
	if !ok {
		if r.maxInterval > 0 {
			return lastMaintenance.Add(r.maxInterval), true
		}
		return time.Time{}, false
	}
	if lo := lastMaintenance.Add(r.minInterval); r.minInterval > 0 && p.Before(lo) {
		p = lo
	}
	if hi := lastMaintenance.Add(r.maxInterval); r.maxInterval > 0 && p.After(hi) {
		p = hi
	}
	return p, true
}

func (r *Runtime) UpdateFrequency() time.Duration { return DefaultRuntimeUpdateFrequency }

func (r *Runtime) encode(state map[string]string) {
	state[KeyRuntimeDuration] = strconv.FormatInt(int64(math.Round(r.accumulated.Seconds())), 10)
}

func (r *Runtime) decode(state map[string]string) error {
	secs, ok, err := decodeNonNegative(state, KeyRuntimeDuration)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if secs > math.MaxInt64/int64(time.Second) {
		return restoreErr(KeyRuntimeDuration, state[KeyRuntimeDuration], errors.New("out of range"))
	}
	r.accumulated = time.Duration(secs) * time.Second
	return nil
}
