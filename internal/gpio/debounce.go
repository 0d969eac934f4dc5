package gpio

import (
	"sort"
	"time"
)

// Change is a debounced state change on one line.
type Change struct {
	Line int
	On   bool
	Time time.Time
	// Baseline is set for the first stable value of a line; there is no
	// previous state to transition from.
	Baseline bool
}

type lineState struct {
	baselined    bool
	stable       bool
	pending      bool
	hasPending   bool
	pendingSince time.Time
}

// Debouncer turns raw samples into stable transitions. A value must hold for
// the debounce duration before it is accepted. Not safe for concurrent use.
type Debouncer struct {
	duration time.Duration
	lines    map[int]*lineState
}

// NewDebouncer creates a debouncer with the given hold duration.
func NewDebouncer(d time.Duration) *Debouncer {
	return &Debouncer{duration: d, lines: make(map[int]*lineState)}
}

// Process takes a sample of all lines and returns the changes it completes,
// ordered by line number.
func (d *Debouncer) Process(sample map[int]bool, now time.Time) []Change {
	lines := make([]int, 0, len(sample))
	for line := range sample {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	var changes []Change
	for _, line := range lines {
		st, ok := d.lines[line]
		if !ok {
			st = &lineState{}
			d.lines[line] = st
		}
		if c, ok := d.processLine(st, sample[line], now); ok {
			c.Line = line
			changes = append(changes, c)
		}
	}
	return changes
}

func (d *Debouncer) processLine(st *lineState, on bool, now time.Time) (Change, bool) {
	// First time seeing this line
	if !st.baselined {
		if !st.hasPending || st.pending != on {
			// Start observing, or restart on a change during baseline
			st.pending, st.hasPending, st.pendingSince = on, true, now
			if d.duration > 0 {
				return Change{}, false
			}
		}
		if now.Sub(st.pendingSince) >= d.duration {
			st.stable, st.baselined, st.hasPending = on, true, false
			return Change{On: on, Time: now, Baseline: true}, true
		}
		return Change{}, false
	}

	if on == st.stable {
		// No change from stable state, clear any pending
		st.hasPending = false
		return Change{}, false
	}

	if !st.hasPending || st.pending != on {
		st.pending, st.hasPending, st.pendingSince = on, true, now
		if d.duration > 0 {
			return Change{}, false
		}
	}

	if now.Sub(st.pendingSince) >= d.duration {
		st.stable, st.hasPending = on, false
		return Change{On: on, Time: now}, true
	}
	return Change{}, false
}

// Stable returns the current stable value of a line and whether it has
// been baselined.
func (d *Debouncer) Stable(line int) (on, ok bool) {
	st, found := d.lines[line]
	if !found || !st.baselined {
		return false, false
	}
	return st.stable, true
}
