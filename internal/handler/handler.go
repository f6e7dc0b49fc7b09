// Package handler wires the keyboard event loop to the remapping engine.
package handler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/halvard/keyremap/internal/engine"
	"github.com/halvard/keyremap/internal/keyboard"
)

// Handler reads KeyEvents off a channel and drives an engine.Remapper with
// them, writing whatever the engine emits back out through a
// VirtualKeyboard. Unlike the engine itself, Handler is touched from more
// than one goroutine — the tray toggles enabled and swaps the active
// profile — so it owns the lock the engine deliberately doesn't.
type Handler struct {
	mu       sync.RWMutex
	remapper *engine.Remapper
	vkb      *keyboard.VirtualKeyboard
	enabled  bool
	logger   *slog.Logger
}

// New creates a handler wired to remapper's output through vkb. remapper's
// callback is set here; callers should not call SetCallback on it
// separately.
func New(remapper *engine.Remapper, vkb *keyboard.VirtualKeyboard, logger *slog.Logger) *Handler {
	h := &Handler{
		remapper: remapper,
		vkb:      vkb,
		enabled:  true,
		logger:   logger,
	}
	remapper.SetCallback(vkb.Emit)
	return h
}

// SetEnabled enables or disables remapping. While disabled, events pass
// through the virtual keyboard unchanged — the engine is bypassed entirely
// rather than forwarding through it, since a disabled remapper's internal
// layer stack must not observe events it won't get to process while
// disabled.
func (h *Handler) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
	h.logger.Info("handler state changed", "enabled", enabled)
}

// SetProfile swaps the active remapper, rewiring its callback to the same
// virtual keyboard. Takes effect for the next event processed.
func (h *Handler) SetProfile(remapper *engine.Remapper) {
	h.mu.Lock()
	defer h.mu.Unlock()
	remapper.SetCallback(h.vkb.Emit)
	h.remapper = remapper
	h.logger.Info("profile changed")
}

// ProcessEvents reads events from the channel and processes them until ctx
// is cancelled or the channel closes.
func (h *Handler) ProcessEvents(ctx context.Context, events <-chan *keyboard.KeyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.handleEvent(ev)
		}
	}
}

func (h *Handler) handleEvent(ev *keyboard.KeyEvent) {
	h.mu.RLock()
	enabled := h.enabled
	remapper := h.remapper
	h.mu.RUnlock()

	var kind engine.EventKind
	switch {
	case ev.IsPress():
		kind = engine.Press
	case ev.IsRelease():
		kind = engine.Release
	}

	if !enabled {
		h.vkb.Emit(ev.Code, kind)
		return
	}

	remapper.Process(ev.Code, kind)
}
