// Package telemetry sends anonymous, opt-in usage events to PostHog.
// Nothing is sent unless telemetry.enabled is set and an API key is configured.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ConfigFileName is the file under the data directory holding the install ID.
const ConfigFileName = "telemetry.json"

// Config holds the telemetry state of this install.
type Config struct {
	// Enabled mirrors the telemetry.enabled setting; it is not persisted.
	Enabled bool `json:"-"`

	// AnonymousID is a random UUID generated on first use. It is not tied to
	// any personally identifiable information.
	AnonymousID string `json:"anonymous_id"`
}

// IsEnabled returns true if telemetry is currently enabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// Load reads the install ID from dir, creating and saving one on first use.
func Load(dir string, enabled bool) (*Config, error) {
	cfg := &Config{Enabled: enabled}
	path := filepath.Join(dir, ConfigFileName)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read telemetry config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse telemetry config: %w", err)
		}
	}

	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.New().String()
		if err := cfg.Save(dir); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Save writes the install ID to dir with owner-only permissions.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create telemetry dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o600); err != nil {
		return fmt.Errorf("write telemetry config: %w", err)
	}
	return nil
}
