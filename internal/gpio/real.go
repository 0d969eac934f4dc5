//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

type requested struct {
	pin  Pin
	line *gpiocdev.Line
}

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []requested
}

// NewRealReader requests every pin on the named chip as an input.
func NewRealReader(chip string, pins []Pin) (*RealReader, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealReader{chip: c}

	for _, p := range pins {
		// Request lines as input with pull-down to match Pi boot defaults.
		// This ensures consistent behavior with external optocoupler modules.
		l, err := c.RequestLine(p.Line, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request pin %d: %w", p.Line, err)
		}
		r.lines = append(r.lines, requested{pin: p, line: l})
	}
	return r, nil
}

// Read returns the logical state of every requested line.
func (r *RealReader) Read() (map[int]bool, error) {
	out := make(map[int]bool, len(r.lines))
	for _, l := range r.lines {
		raw, err := l.line.Value()
		if err != nil {
			return nil, fmt.Errorf("read pin %d: %w", l.pin.Line, err)
		}
		out[l.pin.Line] = logical(raw, l.pin.ActiveLow)
	}
	return out, nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error
	for _, l := range r.lines {
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.pin.Line, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", l.pin.Line, err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}
	return errors.Join(errs...)
}
