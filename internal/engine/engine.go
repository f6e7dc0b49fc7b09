package engine

import (
	"time"

	"github.com/halvard/keyremap/internal/keycode"
)

// Callback is the output sink: invoked synchronously, in strict textual
// order, for every synthesized key event the remapper decides to emit.
type Callback func(code keycode.Code, kind EventKind)

// Remapper is the layered remapping state machine described by the package
// doc. It is not safe for concurrent use: per the single-threaded
// cooperative scheduling model, it is owned exclusively by whatever
// goroutine calls Process, and AddMapping/SetAllowOtherKeys/
// SetNullEventActions are expected to run once at startup before that loop
// begins.
type Remapper struct {
	layers   map[string]*layerDef
	stack    []*frame
	held     map[keycode.Code]bool
	callback Callback
}

// New returns a Remapper with only the base layer active.
func New() *Remapper {
	r := &Remapper{
		layers: make(map[string]*layerDef),
		held:   make(map[keycode.Code]bool),
	}
	base := newLayerDef(BaseLayer)
	r.layers[BaseLayer] = base
	r.stack = []*frame{{def: base}}
	return r
}

func (r *Remapper) layer(name string) *layerDef {
	l, ok := r.layers[name]
	if !ok {
		l = newLayerDef(name)
		r.layers[name] = l
	}
	return l
}

// AddMapping registers actions to run when trigger fires while layer is
// topmost. The layer is created on first use. A prior mapping for the same
// trigger on the same layer is silently overwritten.
func (r *Remapper) AddMapping(layer string, trigger Trigger, actions []Action) {
	r.layer(layer).mappings[trigger] = actions
}

// SetAllowOtherKeys sets whether keys with no mapping on layer pass through
// unchanged (true) or are swallowed (false) while layer is topmost. Unknown
// layers are created empty.
func (r *Remapper) SetAllowOtherKeys(layer string, allow bool) {
	r.layer(layer).allowOtherKeys = allow
}

// SetNullEventActions sets the action list to run when layer deactivates
// without any of its mapped triggers having fired. Unknown layers are
// created empty.
func (r *Remapper) SetNullEventActions(layer string, actions []Action) {
	r.layer(layer).nullEventActions = actions
}

// ActivateLayer returns an action that pushes layer onto the active stack
// when included in an action list.
func (r *Remapper) ActivateLayer(layer string) Action {
	return activateLayer(layer)
}

// SetCallback registers the output sink. Must be called before Process.
func (r *Remapper) SetCallback(cb Callback) {
	r.callback = cb
}

func (r *Remapper) top() *frame {
	return r.stack[len(r.stack)-1]
}

// Process drives the state machine for one incoming (code, kind) event. It
// may invoke the callback zero or more times, synchronously, before
// returning; it never panics and every keycode is valid input.
func (r *Remapper) Process(code keycode.Code, kind EventKind) {
	if kind == Release {
		if idx := r.findActivatingFrame(code); idx >= 0 {
			r.teardownFrom(idx)
			return
		}
	}

	top := r.top()
	trigger := Trigger{Code: code, Kind: kind}
	if actions, ok := top.def.mappings[trigger]; ok {
		if top.def.name != BaseLayer {
			top.used = true
		}
		r.runActions(top, actions, code, kind)
		return
	}

	if top.def.allowOtherKeys {
		r.passThrough(top, code, kind)
		return
	}
	// Swallowed: layer doesn't allow other keys and this one isn't mapped.
}

// passThrough forwards an event unmapped by the topmost layer. Presses
// always forward (and mark the code held); releases only forward when the
// code is currently held — a release whose press was absorbed by a
// since-torn-down layer mapping must not echo through as a bare release of
// a key that was never itself pressed on the output.
func (r *Remapper) passThrough(attrib *frame, code keycode.Code, kind EventKind) {
	if kind == Press {
		r.emit(attrib, code, Press)
		return
	}
	if r.held[code] {
		r.emit(attrib, code, Release)
	}
}

// emit invokes the callback and updates held-output bookkeeping; on a
// press it also records the code against attrib's emission list.
func (r *Remapper) emit(attrib *frame, code keycode.Code, kind EventKind) {
	if r.callback != nil {
		r.callback(code, kind)
	}
	if kind == Press {
		r.held[code] = true
		attrib.emitted = append(attrib.emitted, code)
	} else {
		delete(r.held, code)
	}
}

// runActions executes an action list triggered by incoming event
// (origCode, origKind). EmitKey steps are normally attributed to start
// (the frame that was topmost when the list began); but if the list
// contains an ActivateLayer step, every EmitKey in the list — including
// ones that ran earlier in the same list — is re-attributed to the newly
// pushed frame. This realizes the deferred-emit design: a lead key's own
// forwarded press, emitted in the same action list that activates its
// layer, is released when that layer tears down, not when whatever was
// active before the lead key existed would tear down.
func (r *Remapper) runActions(start *frame, actions []Action, origCode keycode.Code, origKind EventKind) {
	target := start
	pending := make([]keycode.Code, 0, len(actions))

	for _, a := range actions {
		switch a.Kind {
		case ActionEmitKey:
			r.emitRecording(a.Code, a.EventKind, &pending)
		case ActionWait:
			sleep(a.Millis)
		case ActionActivateLayer:
			target = r.push(a.Layer, origCode, origKind)
		}
	}

	for _, code := range pending {
		if r.held[code] {
			target.emitted = append(target.emitted, code)
		}
	}
}

// emitRecording is like emit but defers attribution: it always invokes the
// callback and updates held immediately (output ordering must match
// textual order regardless of which frame a press ends up attributed to),
// recording presses into pending so the caller can attribute them once the
// whole list has run.
func (r *Remapper) emitRecording(code keycode.Code, kind EventKind, pending *[]keycode.Code) {
	if r.callback != nil {
		r.callback(code, kind)
	}
	if kind == Press {
		r.held[code] = true
		*pending = append(*pending, code)
	} else {
		delete(r.held, code)
	}
}

// push creates and activates a new frame for layer, recording the
// activating event so a later release can find it.
func (r *Remapper) push(layer string, activatingCode keycode.Code, activatingKind EventKind) *frame {
	f := &frame{
		def:            r.layer(layer),
		activatingCode: activatingCode,
		activatingKind: activatingKind,
	}
	r.stack = append(r.stack, f)
	return f
}

// findActivatingFrame scans the active stack (excluding the base layer at
// index 0) for a frame whose activating press matches code. It returns -1
// if none matches, and the topmost match is not required: a lead key may
// release after other unrelated events fired while its layer was topmost,
// in which case the stack is searched and everything above the match, plus
// the match itself, tears down.
func (r *Remapper) findActivatingFrame(code keycode.Code) int {
	for i := len(r.stack) - 1; i >= 1; i-- {
		if r.stack[i].activatingCode == code && r.stack[i].activatingKind == Press {
			return i
		}
	}
	return -1
}

// teardownFrom pops every frame from the top of the stack down to and
// including idx, top-to-bottom, running each one's null-event fallback (if
// unused) and releasing its still-held emissions in reverse order before
// removing it.
func (r *Remapper) teardownFrom(idx int) {
	for i := len(r.stack) - 1; i >= idx; i-- {
		f := r.stack[i]
		parent := r.stack[i-1]

		if !f.used && len(f.def.nullEventActions) > 0 {
			r.runActions(parent, f.def.nullEventActions, f.activatingCode, f.activatingKind)
		}

		for j := len(f.emitted) - 1; j >= 0; j-- {
			code := f.emitted[j]
			if r.held[code] {
				r.emit(parent, code, Release)
			}
		}

		r.stack = r.stack[:i]
	}
}

func sleep(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
