// Package engine implements the layered, stateful key remapping state
// machine: it consumes incoming (keycode, press|release) events and decides
// which synthesized events to emit, when to activate and deactivate layers,
// and how to unwind partially-emitted output when a layer tears down.
package engine

import "github.com/halvard/keyremap/internal/keycode"

// EventKind distinguishes a key press from a key release. The integer
// values match evdev's EV_KEY value field (0 = release, 1 = press) so a
// caller can pass a raw evdev value straight through.
type EventKind int

const (
	Release EventKind = 0
	Press   EventKind = 1
)

func (k EventKind) String() string {
	if k == Press {
		return "press"
	}
	return "release"
}

// ActionKind tags the variant held by an Action. Action is a closed sum
// type; switches over Kind are meant to be exhaustive rather than relying
// on dynamic dispatch.
type ActionKind int

const (
	ActionEmitKey ActionKind = iota
	ActionWait
	ActionActivateLayer
)

// Action is one step in an action list: emit a synthesized key event,
// sleep, or push a layer onto the active stack. Only the fields relevant to
// Kind are meaningful for a given variant.
type Action struct {
	Kind ActionKind

	// ActionEmitKey
	Code      keycode.Code
	EventKind EventKind

	// ActionWait
	Millis int

	// ActionActivateLayer
	Layer string
}

// EmitKey returns an action that synthesizes a press or release of code on
// the virtual output.
func EmitKey(code keycode.Code, kind EventKind) Action {
	return Action{Kind: ActionEmitKey, Code: code, EventKind: kind}
}

// Wait returns an action that sleeps for ms milliseconds (1 <= ms <= 1000)
// before the next action in the list runs.
func Wait(ms int) Action {
	return Action{Kind: ActionWait, Millis: ms}
}

// activateLayer returns an action that pushes layer onto the active stack.
// Exported through Remapper.ActivateLayer. The name is not checked: a
// layer the remapper does not know yet is created empty when pushed.
func activateLayer(layer string) Action {
	return Action{Kind: ActionActivateLayer, Layer: layer}
}

// Trigger is the (key, edge) pair an action list is registered against on a
// given layer.
type Trigger struct {
	Code keycode.Code
	Kind EventKind
}
