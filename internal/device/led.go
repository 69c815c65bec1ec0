package device

import "sync/atomic"

// LEDFlag is a single lock-free boolean. The zero value is off.
// Concurrent writers are allowed; the last write wins.
type LEDFlag struct {
	on atomic.Bool
}

// NewLEDFlag returns a flag in the off state.
func NewLEDFlag() *LEDFlag {
	return &LEDFlag{}
}

// Load returns the current value.
func (f *LEDFlag) Load() bool {
	return f.on.Load()
}

// Store sets the value.
func (f *LEDFlag) Store(on bool) {
	f.on.Store(on)
}
