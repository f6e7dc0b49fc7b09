// keyremap: layered, stateful keyboard remapper for Linux
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/halvard/keyremap/internal/config"
	"github.com/halvard/keyremap/internal/engine"
	"github.com/halvard/keyremap/internal/handler"
	"github.com/halvard/keyremap/internal/keyboard"
	"github.com/halvard/keyremap/internal/tray"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	profileName := flag.String("profile", "", "Profile name to use")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version information")
	noTray := flag.Bool("no-tray", false, "Run without system tray")
	flag.Parse()

	if *showVersion {
		fmt.Printf("keyremap %s (%s) built %s\n", version, commit, buildDate)
		os.Exit(0)
	}

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *profileName != "" {
		cfg.Profile = *profileName
	}

	logger.Info("keyremap starting",
		"version", version,
		"profile", cfg.Profile,
	)

	if err := ensureConfigDir(cfg); err != nil {
		logger.Error("failed to create config directory", "error", err)
		os.Exit(1)
	}

	profilePath := cfg.ProfilePath(cfg.Profile)
	logger.Debug("loading profile", "path", profilePath)
	remapper, err := loadProfile(profilePath, logger)
	if err != nil {
		logger.Error("failed to load profile", "profile", cfg.Profile, "path", profilePath, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded profile", "profile", cfg.Profile, "path", profilePath)

	vkb, err := keyboard.NewVirtualKeyboard(logger)
	if err != nil {
		logger.Error("failed to create virtual keyboard", "error", err)
		logger.Error("make sure you have write access to /dev/uinput")
		os.Exit(1)
	}
	defer vkb.Close()

	devManager := keyboard.NewDeviceManager(logger)
	defer devManager.Close()

	keyboards, err := devManager.FindKeyboards()
	if err != nil {
		logger.Error("failed to find keyboards", "error", err)
		os.Exit(1)
	}

	if len(keyboards) == 0 {
		logger.Error("no keyboards found")
		os.Exit(1)
	}

	for _, kb := range keyboards {
		if err := devManager.GrabDevice(kb); err != nil {
			logger.Error("failed to grab keyboard", "name", kb.Name(), "error", err)
			continue
		}
	}

	events := make(chan *keyboard.KeyEvent, 100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, kb := range keyboards {
		go func(dev *keyboard.Device) {
			if err := keyboard.ReadEvents(ctx, dev, events); err != nil {
				logger.Error("error reading events", "device", dev.Name(), "error", err)
			}
		}(kb)
	}

	h := handler.New(remapper, vkb, logger)

	go func() {
		if err := h.ProcessEvents(ctx, events); err != nil {
			logger.Error("error processing events", "error", err)
		}
	}()

	availableProfiles, err := cfg.AvailableProfiles()
	if err != nil {
		logger.Warn("could not list profiles", "error", err)
		availableProfiles = []string{cfg.Profile}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *noTray {
		logger.Info("running without system tray, press Ctrl+C to quit")
		<-sigChan
		logger.Info("shutting down...")
	} else {
		trayCfg := tray.Config{
			CurrentProfile:    cfg.Profile,
			AvailableProfiles: availableProfiles,
			Enabled:           true,
			OnProfileChange: func(profileName string) {
				newRemapper, err := loadProfile(cfg.ProfilePath(profileName), logger)
				if err != nil {
					logger.Error("failed to load profile", "profile", profileName, "error", err)
					return
				}
				cfg.Profile = profileName
				cfg.Save()
				h.SetProfile(newRemapper)
			},
			OnToggle: func(enabled bool) {
				h.SetEnabled(enabled)
			},
			OnQuit: func() {
				logger.Info("shutting down...")
				cancel()
				os.Exit(0)
			},
			Logger: logger,
		}

		trayIcon := tray.New(trayCfg)

		go func() {
			<-sigChan
			logger.Info("shutting down...")
			trayIcon.Quit()
		}()

		trayIcon.Run()
	}

	logger.Info("keyremap stopped")
}

// loadProfile reads a mapping-rule file and builds a fresh Remapper from it.
// Line errors are logged individually but do not abort loading — the
// remapper ends up with whatever mappings parsed cleanly, matching
// ParseMapping's own "continue past bad lines" behavior. Loading fails only
// when every line of the file was rejected.
func loadProfile(path string, logger *slog.Logger) (*engine.Remapper, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	r := engine.New()
	ok, lineErrors := config.ParseMapping(lines, r)
	for _, le := range lineErrors {
		logger.Warn("skipping invalid mapping line", "line", le.Line, "text", le.Text, "error", le.Err)
	}
	if !ok && len(lineErrors) == len(lines) {
		return nil, fmt.Errorf("no valid mappings in %s", path)
	}

	return r, nil
}

// ensureConfigDir creates the config directory and its profiles subdirectory
// if needed.
func ensureConfigDir(cfg *config.AppConfig) error {
	profileDir := filepath.Join(cfg.ConfigDir, "profiles")
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return err
	}
	return nil
}
