// Package tray provides system tray integration using fyne.io/systray.
package tray

import (
	"log/slog"
	"time"

	"fyne.io/systray"
)

// Tray represents the system tray icon and menu.
type Tray struct {
	logger *slog.Logger

	// Callbacks
	onProfileChange func(profile string)
	onToggle        func(enabled bool)
	onQuit          func()

	// State
	enabled          bool
	currentProfile   string
	availableProfiles []string

	// Menu items for updates
	statusItem   *systray.MenuItem
	profileItems []*systray.MenuItem
}

// Config holds tray configuration.
type Config struct {
	CurrentProfile    string
	AvailableProfiles []string
	Enabled           bool
	OnProfileChange   func(profile string)
	OnToggle          func(enabled bool)
	OnQuit            func()
	Logger            *slog.Logger
}

// New creates a new system tray icon.
func New(cfg Config) *Tray {
	return &Tray{
		enabled:           cfg.Enabled,
		currentProfile:    cfg.CurrentProfile,
		availableProfiles: cfg.AvailableProfiles,
		onProfileChange:   cfg.OnProfileChange,
		onToggle:          cfg.OnToggle,
		onQuit:            cfg.OnQuit,
		logger:            cfg.Logger,
	}
}

// Run starts the system tray. This blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when systray is ready.
func (t *Tray) onReady() {
	systray.SetIcon(keyboardIcon)
	systray.SetTitle("keyremap")
	t.updateTooltip()

	// Status toggle
	t.statusItem = systray.AddMenuItem("✓ Enabled", "Toggle key remapping")

	systray.AddSeparator()

	// Profile submenu
	profileMenu := systray.AddMenuItem("Profile", "Select mapping profile")
	t.profileItems = make([]*systray.MenuItem, len(t.availableProfiles))

	for i, profile := range t.availableProfiles {
		label := profile
		if profile == t.currentProfile {
			label = "● " + profile
		} else {
			label = "  " + profile
		}
		t.profileItems[i] = profileMenu.AddSubMenuItem(label, "Switch to "+profile)
	}

	systray.AddSeparator()

	// Quit
	quitItem := systray.AddMenuItem("Quit", "Exit keyremap")

	// Handle menu clicks
	go t.handleClicks(quitItem)
}

// handleClicks processes menu item clicks.
func (t *Tray) handleClicks(quitItem *systray.MenuItem) {
	for {
		select {
		case <-t.statusItem.ClickedCh:
			t.toggleEnabled()

		case <-quitItem.ClickedCh:
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
			return

		default:
			// Check profile items
			for i, item := range t.profileItems {
				select {
				case <-item.ClickedCh:
					t.selectProfile(t.availableProfiles[i])
				default:
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// toggleEnabled toggles the enabled state.
func (t *Tray) toggleEnabled() {
	t.enabled = !t.enabled

	if t.enabled {
		t.statusItem.SetTitle("✓ Enabled")
		systray.SetIcon(keyboardIcon)
	} else {
		t.statusItem.SetTitle("✗ Disabled")
		systray.SetIcon(keyboardDisabledIcon)
	}

	t.updateTooltip()

	if t.onToggle != nil {
		t.onToggle(t.enabled)
	}
}

// selectProfile changes the current profile.
func (t *Tray) selectProfile(profile string) {
	if profile == t.currentProfile {
		return
	}

	// Update menu labels
	for i, p := range t.availableProfiles {
		if p == profile {
			t.profileItems[i].SetTitle("● " + p)
		} else {
			t.profileItems[i].SetTitle("  " + p)
		}
	}

	t.currentProfile = profile
	t.updateTooltip()
	t.logger.Info("profile changed", "profile", profile)

	if t.onProfileChange != nil {
		t.onProfileChange(profile)
	}
}

// updateTooltip updates the tray tooltip.
func (t *Tray) updateTooltip() {
	status := "Enabled"
	if !t.enabled {
		status = "Disabled"
	}
	systray.SetTooltip("keyremap: " + status + " (" + t.currentProfile + ")")
}

// onExit is called when systray is exiting.
func (t *Tray) onExit() {
	t.logger.Info("tray exiting")
}

// Quit stops the system tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// SetEnabled sets the enabled state.
func (t *Tray) SetEnabled(enabled bool) {
	t.enabled = enabled
	if t.statusItem != nil {
		if enabled {
			t.statusItem.SetTitle("✓ Enabled")
		} else {
			t.statusItem.SetTitle("✗ Disabled")
		}
	}
	t.updateTooltip()
}
