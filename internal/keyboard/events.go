package keyboard

import (
	"syscall"

	"github.com/halvard/keyremap/internal/keycode"
)

// KeyEvent represents a key press, release, or repeat read off a grabbed
// input device.
type KeyEvent struct {
	Code      keycode.Code
	Value     int32 // 0=release, 1=press, 2=repeat
	Timestamp syscall.Timeval
	Device    *Device
}

// IsPress returns true if this is a key press event.
func (e *KeyEvent) IsPress() bool {
	return e.Value == 1
}

// IsRelease returns true if this is a key release event.
func (e *KeyEvent) IsRelease() bool {
	return e.Value == 0
}
