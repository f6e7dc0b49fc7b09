package keyboard

import (
	"fmt"
	"log/slog"

	"github.com/bendahl/uinput"

	"github.com/halvard/keyremap/internal/engine"
	"github.com/halvard/keyremap/internal/keycode"
)

// VirtualKeyboard is the output sink for the remapping engine: a uinput
// device that realizes EmitKey actions as raw key-down/key-up writes.
type VirtualKeyboard struct {
	keyboard uinput.Keyboard
	logger   *slog.Logger
}

// NewVirtualKeyboard creates a new virtual keyboard for output.
func NewVirtualKeyboard(logger *slog.Logger) (*VirtualKeyboard, error) {
	kb, err := uinput.CreateKeyboard("/dev/uinput", []byte("keyremap-virtual"))
	if err != nil {
		return nil, fmt.Errorf("creating virtual keyboard: %w", err)
	}

	return &VirtualKeyboard{
		keyboard: kb,
		logger:   logger,
	}, nil
}

// Close releases the virtual keyboard.
func (vk *VirtualKeyboard) Close() error {
	return vk.keyboard.Close()
}

// PressKey simulates a key press.
func (vk *VirtualKeyboard) PressKey(code keycode.Code) error {
	return vk.keyboard.KeyDown(int(code))
}

// ReleaseKey simulates a key release.
func (vk *VirtualKeyboard) ReleaseKey(code keycode.Code) error {
	return vk.keyboard.KeyUp(int(code))
}

// Emit realizes one engine-emitted event on the virtual output. It is
// intended as the body of the engine.Callback an engine.Remapper is wired
// up with; errors are logged rather than returned since the callback
// signature gives the engine no way to react to an output failure.
func (vk *VirtualKeyboard) Emit(code keycode.Code, kind engine.EventKind) {
	var err error
	if kind == engine.Press {
		err = vk.PressKey(code)
	} else {
		err = vk.ReleaseKey(code)
	}
	if err != nil {
		vk.logger.Error("writing to virtual keyboard", "code", keycode.CodeToName(code), "kind", kind.String(), "error", err)
	}
}
