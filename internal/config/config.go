// Package config handles application configuration loading and management,
// plus the mapping-language parser in parser.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AppConfig is the ambient application configuration: which mapping profile
// to load, which keyboard device to grab, and how verbosely to log. It is
// distinct from a mapping profile itself, which is a plain-text file parsed
// by ParseMapping.
type AppConfig struct {
	Profile        string `yaml:"profile"`
	LogLevel       string `yaml:"log_level"`
	KeyboardDevice string `yaml:"keyboard_device"`
	ConfigDir      string `yaml:"-"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Profile:        "default",
		LogLevel:       "info",
		KeyboardDevice: "auto",
	}
}

// Load reads configuration from the specified path or default locations.
func Load(configPath string) (*AppConfig, error) {
	cfg := DefaultConfig()

	// Search paths in order of priority
	searchPaths := []string{}

	if configPath != "" {
		searchPaths = append(searchPaths, configPath)
	}

	// User config directory (use SUDO_USER if running as root via sudo)
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		searchPaths = append(searchPaths, filepath.Join("/home", sudoUser, ".config", "keyremap", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "keyremap", "config.yaml"))
	}

	// Executable directory (for portable usage)
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		searchPaths = append(searchPaths, filepath.Join(exeDir, "profiles", "config.yaml"))
	}

	// System config directory
	searchPaths = append(searchPaths, "/etc/keyremap/config.yaml")

	var loadedPath string
	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
			loadedPath = path
			break
		}
	}

	// Set config directory based on loaded file or default
	if loadedPath != "" {
		cfg.ConfigDir = filepath.Dir(loadedPath)
	} else {
		// Fallback: use executable directory
		if exe, err := os.Executable(); err == nil {
			cfg.ConfigDir = filepath.Join(filepath.Dir(exe), "profiles")
		} else if home, err := os.UserHomeDir(); err == nil {
			cfg.ConfigDir = filepath.Join(home, ".config", "keyremap")
		} else {
			cfg.ConfigDir = "/etc/keyremap"
		}
	}

	return cfg, nil
}

// ProfilePath returns the path of the mapping-rule file for the named
// profile.
func (c *AppConfig) ProfilePath(name string) string {
	return filepath.Join(c.ConfigDir, "profiles", name+".keymap")
}

// AvailableProfiles lists the mapping-rule files found in the config
// directory's profiles subdirectory.
func (c *AppConfig) AvailableProfiles() ([]string, error) {
	profileDir := filepath.Join(c.ConfigDir, "profiles")
	entries, err := os.ReadDir(profileDir)
	if err != nil {
		return nil, fmt.Errorf("reading profiles directory: %w", err)
	}

	var profiles []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".keymap" {
			name := entry.Name()
			profiles = append(profiles, name[:len(name)-len(".keymap")])
		}
	}

	return profiles, nil
}

func (c *AppConfig) Save() error {
	configPath := filepath.Join(c.ConfigDir, "config.yaml")

	if err := os.MkdirAll(c.ConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
