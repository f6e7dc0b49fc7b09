package engine

import (
	"reflect"
	"testing"

	"github.com/halvard/keyremap/internal/keycode"
)

// record returns a callback that appends every emission to a log in
// "+NAME"/"-NAME" shorthand, plus the slice it writes into.
func record() (Callback, *[]string) {
	log := []string{}
	cb := func(code keycode.Code, kind EventKind) {
		prefix := "-"
		if kind == Press {
			prefix = "+"
		}
		log = append(log, prefix+keycode.CodeToName(code))
	}
	return cb, &log
}

func wantLog(names ...string) []string {
	return names
}

// --- direct engine-API tests, grounded on remap_operator_test.cpp ---

func TestEngineTest1(t *testing.T) {
	r := New()
	r.AddMapping("fnkeys", Trigger{keycode.KEY_A, Press}, []Action{EmitKey(keycode.KEY_B, Press)})
	r.AddMapping("fnkeys", Trigger{keycode.KEY_A, Release}, []Action{EmitKey(keycode.KEY_B, Release)})
	r.AddMapping("fnkeys", Trigger{keycode.KEY_1, Press}, []Action{EmitKey(keycode.KEY_F1, Press)})
	r.AddMapping("fnkeys", Trigger{keycode.KEY_0, Press}, []Action{EmitKey(keycode.KEY_F10, Press)})
	r.AddMapping(BaseLayer, Trigger{keycode.KEY_RIGHTCTRL, Press}, []Action{
		EmitKey(keycode.KEY_RIGHTCTRL, Press),
		r.ActivateLayer("fnkeys"),
	})

	cb, log := record()
	r.SetCallback(cb)

	feed(r, keycode.KEY_C, Press)
	feed(r, keycode.KEY_C, Release)
	feed(r, keycode.KEY_RIGHTCTRL, Press)
	feed(r, keycode.KEY_A, Press)
	feed(r, keycode.KEY_RIGHTCTRL, Release)
	feed(r, keycode.KEY_A, Press)
	feed(r, keycode.KEY_A, Release)

	want := wantLog(
		"+KEY_C", "-KEY_C",
		"+KEY_RIGHTCTRL",
		"+KEY_B",
		"-KEY_B", "-KEY_RIGHTCTRL",
		"+KEY_A",
		"-KEY_A",
	)
	if !reflect.DeepEqual(*log, want) {
		t.Errorf("got %v, want %v", *log, want)
	}
}

func TestEngineLeadKey(t *testing.T) {
	newRemapper := func() *Remapper {
		r := New()
		r.AddMapping(BaseLayer, Trigger{keycode.KEY_DELETE, Press}, []Action{r.ActivateLayer("del")})
		r.AddMapping("del", Trigger{keycode.KEY_BACKSPACE, Press}, []Action{EmitKey(keycode.KEY_PRINT, Press)})
		return r
	}

	t.Run("leave lead key first", func(t *testing.T) {
		r := newRemapper()
		cb, log := record()
		r.SetCallback(cb)
		feed(r, keycode.KEY_DELETE, Press)
		feed(r, keycode.KEY_BACKSPACE, Press)
		feed(r, keycode.KEY_DELETE, Release)
		feed(r, keycode.KEY_BACKSPACE, Release)
		want := wantLog("+KEY_PRINT", "-KEY_PRINT")
		if !reflect.DeepEqual(*log, want) {
			t.Errorf("got %v, want %v", *log, want)
		}
	})

	t.Run("leave other key first", func(t *testing.T) {
		r := newRemapper()
		cb, log := record()
		r.SetCallback(cb)
		feed(r, keycode.KEY_DELETE, Press)
		feed(r, keycode.KEY_BACKSPACE, Press)
		feed(r, keycode.KEY_BACKSPACE, Release)
		feed(r, keycode.KEY_DELETE, Release)
		want := wantLog("+KEY_PRINT", "-KEY_PRINT")
		if !reflect.DeepEqual(*log, want) {
			t.Errorf("got %v, want %v", *log, want)
		}
	})
}

func TestEngineRCtrlDeactivatesAroundFKeys(t *testing.T) {
	newRemapper := func() *Remapper {
		r := New()
		r.AddMapping(BaseLayer, Trigger{keycode.KEY_RIGHTCTRL, Press}, []Action{
			EmitKey(keycode.KEY_RIGHTCTRL, Press),
			r.ActivateLayer("rctrl_fn_layer"),
		})
		r.AddMapping("rctrl_fn_layer", Trigger{keycode.KEY_BACKSPACE, Press}, []Action{EmitKey(keycode.KEY_A, Press)})
		r.AddMapping("rctrl_fn_layer", Trigger{keycode.KEY_1, Press}, []Action{
			EmitKey(keycode.KEY_RIGHTCTRL, Release),
			EmitKey(keycode.KEY_F1, Press),
		})
		return r
	}

	t.Run("covers mapped keys", func(t *testing.T) {
		r := newRemapper()
		cb, log := record()
		r.SetCallback(cb)
		feed(r, keycode.KEY_RIGHTCTRL, Press)
		feed(r, keycode.KEY_BACKSPACE, Press)
		feed(r, keycode.KEY_RIGHTCTRL, Release)
		feed(r, keycode.KEY_BACKSPACE, Release)
		feed(r, keycode.KEY_BACKSPACE, Press)
		want := wantLog("+KEY_RIGHTCTRL", "+KEY_A", "-KEY_A", "-KEY_RIGHTCTRL", "+KEY_BACKSPACE")
		if !reflect.DeepEqual(*log, want) {
			t.Errorf("got %v, want %v", *log, want)
		}
	})

	// This is the scenario that pins allow_other_keys' engine-level
	// default to true: no SetAllowOtherKeys call is made anywhere for
	// rctrl_fn_layer, yet KEY_B — unmapped on that layer — must pass
	// through both directions.
	t.Run("covers all other keys as expected", func(t *testing.T) {
		r := newRemapper()
		cb, log := record()
		r.SetCallback(cb)
		feed(r, keycode.KEY_RIGHTCTRL, Press)
		feed(r, keycode.KEY_B, Press)
		feed(r, keycode.KEY_RIGHTCTRL, Release)
		feed(r, keycode.KEY_B, Release)
		want := wantLog("+KEY_RIGHTCTRL", "+KEY_B", "-KEY_B", "-KEY_RIGHTCTRL")
		if !reflect.DeepEqual(*log, want) {
			t.Errorf("got %v, want %v", *log, want)
		}
	})

	t.Run("releases ctrl before f1", func(t *testing.T) {
		r := newRemapper()
		cb, log := record()
		r.SetCallback(cb)
		feed(r, keycode.KEY_RIGHTCTRL, Press)
		feed(r, keycode.KEY_1, Press)
		feed(r, keycode.KEY_1, Release)
		feed(r, keycode.KEY_RIGHTCTRL, Release)
		want := wantLog("+KEY_RIGHTCTRL", "-KEY_RIGHTCTRL", "+KEY_F1", "-KEY_F1")
		if !reflect.DeepEqual(*log, want) {
			t.Errorf("got %v, want %v", *log, want)
		}
	})
}

// TestEngineDelBackspaceIntendedBehavior implements the intended semantics
// documented by the still-WIP original scenario: null_event_actions fire in
// full when a layer pops unused, even when other keys were pressed and
// released while it was active. The restrictive layer (allow_other_keys
// explicitly false) swallows anything not END.
func TestEngineDelBackspaceIntendedBehavior(t *testing.T) {
	newRemapper := func() *Remapper {
		r := New()
		r.AddMapping(BaseLayer, Trigger{keycode.KEY_DELETE, Press}, []Action{r.ActivateLayer("del_layer")})
		r.SetAllowOtherKeys("del_layer", false)
		r.AddMapping("del_layer", Trigger{keycode.KEY_END, Press}, []Action{EmitKey(keycode.KEY_VOLUMEUP, Press)})
		r.AddMapping("del_layer", Trigger{keycode.KEY_END, Release}, []Action{EmitKey(keycode.KEY_VOLUMEUP, Release)})
		r.SetNullEventActions("del_layer", []Action{
			EmitKey(keycode.KEY_DELETE, Press),
			EmitKey(keycode.KEY_DELETE, Release),
		})
		return r
	}

	t.Run("del+end does volumeup", func(t *testing.T) {
		r := newRemapper()
		cb, log := record()
		r.SetCallback(cb)
		feed(r, keycode.KEY_DELETE, Press)
		feed(r, keycode.KEY_END, Press)
		feed(r, keycode.KEY_END, Release)
		feed(r, keycode.KEY_DELETE, Release)
		want := wantLog("+KEY_VOLUMEUP", "-KEY_VOLUMEUP")
		if !reflect.DeepEqual(*log, want) {
			t.Errorf("got %v, want %v", *log, want)
		}
	})

	t.Run("del alone acts as del", func(t *testing.T) {
		r := newRemapper()
		cb, log := record()
		r.SetCallback(cb)
		feed(r, keycode.KEY_DELETE, Press)
		feed(r, keycode.KEY_DELETE, Release)
		want := wantLog("+KEY_DELETE", "-KEY_DELETE")
		if !reflect.DeepEqual(*log, want) {
			t.Errorf("got %v, want %v", *log, want)
		}
	})
}

// --- spec scenarios 3-6, grounded on the DSL's actual rewriting rules ---

func newDelLayerRemapper(blockOtherKeys bool) *Remapper {
	r := New()
	r.AddMapping(BaseLayer, Trigger{keycode.KEY_DELETE, Press}, []Action{r.ActivateLayer("del_layer")})
	r.SetAllowOtherKeys("del_layer", !blockOtherKeys)
	r.SetNullEventActions("del_layer", []Action{
		EmitKey(keycode.KEY_DELETE, Press),
		EmitKey(keycode.KEY_DELETE, Release),
	})
	r.AddMapping("del_layer", Trigger{keycode.KEY_END, Press}, []Action{EmitKey(keycode.KEY_VOLUMEUP, Press)})
	r.AddMapping("del_layer", Trigger{keycode.KEY_END, Release}, []Action{EmitKey(keycode.KEY_VOLUMEUP, Release)})
	return r
}

func TestEngineScenario3TapOnlyFallback(t *testing.T) {
	r := newDelLayerRemapper(true)
	cb, log := record()
	r.SetCallback(cb)
	feed(r, keycode.KEY_DELETE, Press)
	feed(r, keycode.KEY_DELETE, Release)
	want := wantLog("+KEY_DELETE", "-KEY_DELETE")
	if !reflect.DeepEqual(*log, want) {
		t.Errorf("got %v, want %v", *log, want)
	}
}

func TestEngineScenario4TapOnlyFallbackSuppressedByUse(t *testing.T) {
	r := newDelLayerRemapper(true)
	cb, log := record()
	r.SetCallback(cb)
	feed(r, keycode.KEY_DELETE, Press)
	feed(r, keycode.KEY_END, Press)
	feed(r, keycode.KEY_END, Release)
	feed(r, keycode.KEY_DELETE, Release)
	want := wantLog("+KEY_VOLUMEUP", "-KEY_VOLUMEUP")
	if !reflect.DeepEqual(*log, want) {
		t.Errorf("got %v, want %v", *log, want)
	}
}

func TestEngineScenario5ReleaseOrderIndependence(t *testing.T) {
	r := newDelLayerRemapper(true)
	cb, log := record()
	r.SetCallback(cb)
	feed(r, keycode.KEY_DELETE, Press)
	feed(r, keycode.KEY_END, Press)
	feed(r, keycode.KEY_DELETE, Release)
	feed(r, keycode.KEY_END, Release)
	want := wantLog("+KEY_VOLUMEUP", "-KEY_VOLUMEUP")
	if !reflect.DeepEqual(*log, want) {
		t.Errorf("got %v, want %v", *log, want)
	}
}

func TestEngineScenario6SwallowInRestrictiveLayer(t *testing.T) {
	r := New()
	r.AddMapping(BaseLayer, Trigger{keycode.KEY_DELETE, Press}, []Action{r.ActivateLayer("del_layer")})
	r.SetAllowOtherKeys("del_layer", false)
	r.SetNullEventActions("del_layer", nil)
	r.AddMapping("del_layer", Trigger{keycode.KEY_END, Press}, []Action{EmitKey(keycode.KEY_VOLUMEUP, Press)})

	cb, log := record()
	r.SetCallback(cb)
	feed(r, keycode.KEY_DELETE, Press)
	feed(r, keycode.KEY_F, Press)
	feed(r, keycode.KEY_F, Release)
	feed(r, keycode.KEY_DELETE, Release)

	if len(*log) != 0 {
		t.Errorf("got %v, want empty", *log)
	}
}

// --- named invariants from spec §8 ---

func TestInvariantBasePassThroughEmptyConfig(t *testing.T) {
	r := New()
	cb, log := record()
	r.SetCallback(cb)

	in := []struct {
		code keycode.Code
		kind EventKind
	}{
		{keycode.KEY_A, Press}, {keycode.KEY_A, Release},
		{keycode.KEY_SPACE, Press}, {keycode.KEY_SPACE, Release},
	}
	want := []string{}
	for _, e := range in {
		feed(r, e.code, e.kind)
		prefix := "-"
		if e.kind == Press {
			prefix = "+"
		}
		want = append(want, prefix+keycode.CodeToName(e.code))
	}
	if !reflect.DeepEqual(*log, want) {
		t.Errorf("got %v, want %v", *log, want)
	}
}

func TestInvariantBalancedHolds(t *testing.T) {
	r := newDelLayerRemapper(true)
	cb, log := record()
	r.SetCallback(cb)

	feed(r, keycode.KEY_DELETE, Press)
	feed(r, keycode.KEY_END, Press)
	feed(r, keycode.KEY_END, Release)
	feed(r, keycode.KEY_DELETE, Release)

	held := map[string]int{}
	for _, e := range *log {
		held[e[1:]] += map[byte]int{'+': 1, '-': -1}[e[0]]
	}
	for name, balance := range held {
		if balance != 0 {
			t.Errorf("key %s unbalanced: %d", name, balance)
		}
	}
}

func TestInvariantIdempotentReconfiguration(t *testing.T) {
	r1 := New()
	r1.AddMapping(BaseLayer, Trigger{keycode.KEY_A, Press}, []Action{EmitKey(keycode.KEY_B, Press)})
	r1.AddMapping(BaseLayer, Trigger{keycode.KEY_A, Press}, []Action{EmitKey(keycode.KEY_C, Press)})

	r2 := New()
	r2.AddMapping(BaseLayer, Trigger{keycode.KEY_A, Press}, []Action{EmitKey(keycode.KEY_C, Press)})

	cb1, log1 := record()
	r1.SetCallback(cb1)
	feed(r1, keycode.KEY_A, Press)

	cb2, log2 := record()
	r2.SetCallback(cb2)
	feed(r2, keycode.KEY_A, Press)

	if !reflect.DeepEqual(*log1, *log2) {
		t.Errorf("got %v, want %v", *log1, *log2)
	}
}

func feed(r *Remapper, code keycode.Code, kind EventKind) {
	r.Process(code, kind)
}
