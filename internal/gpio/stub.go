//go:build !linux

package gpio

import (
	"errors"
	"fmt"
)

// RealReader needs the Linux GPIO character device; elsewhere it cannot be
// constructed.
type RealReader struct{}

// NewRealReader reports errors.ErrUnsupported on non-Linux platforms.
func NewRealReader(chip string, pins []Pin) (*RealReader, error) {
	return nil, fmt.Errorf("gpio %s: %w", chip, errors.ErrUnsupported)
}

func (r *RealReader) Read() (map[int]bool, error) { return nil, errors.ErrUnsupported }

func (r *RealReader) Close() error { return nil }
