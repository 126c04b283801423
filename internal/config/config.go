// Package config loads the server configuration file. The format is JSON
// with comments and trailing commas allowed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

type Config struct {
	// ListenAddr is the host:port the websocket server binds to.
	ListenAddr string `json:"listenAddr"`
	// DatabasePath locates the sqlite database file.
	DatabasePath string `json:"databasePath"`
	// LogFile, when set, receives the server log in addition to stderr.
	LogFile string `json:"logFile"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		ListenAddr:   ":8085",
		DatabasePath: filepath.Join(home, ".tandem", "tandem.db"),
	}
}

// Load reads the configuration at path, falling back to defaults for a
// missing file and for any unset key.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
