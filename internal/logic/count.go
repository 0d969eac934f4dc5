package logic

import (
	"fmt"
	"strconv"
	"time"
)

// Count triggers maintenance after a number of off→on transitions.
type Count struct {
	threshold int
	turnOns   int
}

// NewCount creates a count strategy with threshold >= 1.
func NewCount(threshold int) (*Count, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1, got %d", ErrConfig, threshold)
	}
	return &Count{threshold: threshold}, nil
}

func (c *Count) Type() SensorType { return SensorCount }

func (c *Count) needsSource() bool { return true }

// Threshold returns the configured turn-on count.
func (c *Count) Threshold() int { return c.threshold }

// TurnOnCount returns the turn-ons since the last reset.
func (c *Count) TurnOnCount() int { return c.turnOns }

func (c *Count) TurnOn(time.Time) { c.turnOns++ }

func (c *Count) TurnOff(time.Time) {}

func (c *Count) Update(time.Time) {}

func (c *Count) Reset(time.Time) { c.turnOns = 0 }

func (c *Count) Needed(_, _ time.Time) bool {
	return c.turnOns >= c.threshold
}

func (c *Count) Predict(lastMaintenance, now time.Time) (time.Time, bool) {
	return extrapolate(lastMaintenance, now, float64(c.turnOns), float64(c.threshold))
}

func (c *Count) UpdateFrequency() time.Duration { return 0 }

func (c *Count) encode(state map[string]string) {
	state[KeyTurnOnCount] = strconv.Itoa(c.turnOns)
}

func (c *Count) decode(state map[string]string) error {
	n, ok, err := decodeNonNegative(state, KeyTurnOnCount)
	if err != nil {
		return err
	}
	if ok {
		c.turnOns = int(n)
	}
	return nil
}
