package config

import (
	"os"
	"path/filepath"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.agentdeck).
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+AppName), nil
}

// ResolveDataDir returns where the memory database and crash logs live.
// Resolution order (first match wins):
// 1. Explicit config via "data.dir"
// 2. XDG_DATA_HOME/agentdeck (if XDG_DATA_HOME is set)
// 3. Global fallback: ~/.agentdeck
func ResolveDataDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, AppName)
	}
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return "./." + AppName
	}
	return dir
}

// MemoryDBPath returns the sqlite file for sessions, memories and knowledge.
func (s Settings) MemoryDBPath() string {
	if s.Memory.Path != "" {
		return s.Memory.Path
	}
	return filepath.Join(s.DataDir, "memory.db")
}
