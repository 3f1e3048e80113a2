package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the on-disk configuration for kbctl. Every field has a working
// default so the tool runs without any config file at all.
type Config struct {
	// DBPath is the SQLite database file. Empty means <state dir>/kb.sqlite.
	DBPath string `json:"db_path,omitempty"`

	// Port is the loopback port for `kbctl serve`.
	Port int `json:"port,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `json:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `json:"log_level,omitempty"`

	// Categories and Products are the label lists offered by the
	// interactive entry prompt. They do not restrict what the store
	// accepts.
	Categories []string `json:"categories,omitempty"`
	Products   []string `json:"products,omitempty"`
}

const DefaultPort = 8377

// DefaultCategories mirrors the support areas the tool grew up around.
// Free-form labels are still accepted everywhere.
var DefaultCategories = []string{
	"app-proxy", "orders-api", "returns-api", "fulfillments-api",
	"products-api", "shopify-cli", "webhooks", "payments-api",
	"multipass", "customer-account-api", "bulk-operations",
	"media-api", "app-billing", "app-configuration",
	"oxygen-api", "storefront-api", "admin-api", "general",
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format: %s", c.LogFormat)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.LogLevel)
	}
	return nil
}

// StateDir returns the default state directory:
//
//	~/.kbctl
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ".kbctl"
	}
	return filepath.Join(home, ".kbctl")
}

// DefaultConfigPath returns the default config path:
//
//	~/.kbctl/config.json
func DefaultConfigPath() string {
	return filepath.Join(StateDir(), "config.json")
}

// ResolvedDBPath returns the configured database path, or the default under
// the state dir when unset.
func (c *Config) ResolvedDBPath() string {
	if c != nil && strings.TrimSpace(c.DBPath) != "" {
		return filepath.Clean(strings.TrimSpace(c.DBPath))
	}
	return filepath.Join(StateDir(), "kb.sqlite")
}

// ResolvedPort returns the configured serve port, or the default when unset.
func (c *Config) ResolvedPort() int {
	if c != nil && c.Port > 0 {
		return c.Port
	}
	return DefaultPort
}

// PromptCategories returns the configured category labels, or the defaults
// when unset.
func (c *Config) PromptCategories() []string {
	if c != nil && len(c.Categories) > 0 {
		return c.Categories
	}
	return DefaultCategories
}

// Load reads the config file at path. A missing file is not an error: it
// yields a config with all defaults, so first runs need no setup step.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	// Write atomically.
	tmp := path + ".tmp"
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
