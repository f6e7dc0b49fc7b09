package engine

import "github.com/halvard/keyremap/internal/keycode"

// BaseLayer is the always-active layer at the bottom of the active-layer
// stack. The empty name is reserved for it.
const BaseLayer = ""

// layerDef holds the static, parser-populated definition of a layer: its
// trigger table and its two policy knobs. It lives for the remapper's
// entire lifetime; layer names are only ever borrowed, never owned, by
// anything outside the remapper.
type layerDef struct {
	name              string
	mappings          map[Trigger][]Action
	allowOtherKeys    bool
	nullEventActions  []Action
}

// newLayerDef's allowOtherKeys starts true for every layer, base or not —
// the engine itself has no opinion that a freshly created layer should be
// restrictive. config.ParseMapping explicitly narrows this to false the
// moment it registers a layer from a "KEY + OTHER = ..." line; callers of
// AddMapping directly get the permissive default.
func newLayerDef(name string) *layerDef {
	return &layerDef{
		name:           name,
		mappings:       make(map[Trigger][]Action),
		allowOtherKeys: true,
	}
}

// frame is one entry in the active-layer stack: a layerDef plus the
// per-activation bookkeeping needed to tear it down cleanly (spec's
// "deferred-key ledger"). The base layer's frame never gets popped and its
// activatingCode/used fields are unused.
type frame struct {
	def *layerDef

	// activatingCode/activatingKind identify the incoming event whose
	// processing pushed this frame, so a later release can be matched
	// against it to know this frame should tear down.
	activatingCode keycode.Code
	activatingKind EventKind

	// used becomes true the first time a key mapped on this layer fires.
	// If it is still false when the frame tears down, nullEventActions
	// run instead.
	used bool

	// emitted lists, in emission order, the output keycodes pressed
	// while this frame was the attribution target (see runActions in
	// engine.go for what "attribution target" means). On teardown these
	// are released — for whichever of them are still actually held — in
	// reverse order.
	emitted []keycode.Code
}
