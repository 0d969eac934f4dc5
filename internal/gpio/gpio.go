// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Raw states reported to the engine for a GPIO source.
const (
	StateOn  = "on"
	StateOff = "off"
)

// Pin is one input line (BCM numbering).
type Pin struct {
	Line int
	// ActiveLow inverts the line: raw active = logical OFF, as with the
	// optocoupler modules that pull the line when the load is not powered.
	ActiveLow bool
}

// Reader reads GPIO input states.
type Reader interface {
	// Read returns the logical state of every requested line, keyed by line
	// number; true = ON.
	Read() (map[int]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// StateString converts a logical value to the raw state fed to the engine.
func StateString(on bool) string {
	if on {
		return StateOn
	}
	return StateOff
}

func logical(raw int, activeLow bool) bool {
	if activeLow {
		return raw == 0
	}
	return raw != 0
}
