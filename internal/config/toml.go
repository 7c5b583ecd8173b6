// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Stack   StackConfig   `toml:"stack"`
	Physics PhysicsConfig `toml:"physics"`
}

// StackConfig maps session and rendering settings.
type StackConfig struct {
	Deck       *string  `toml:"deck"`
	Scheme     *string  `toml:"scheme"`
	Record     *bool    `toml:"record"`
	CellWidth  *float64 `toml:"cell-width"`
	CellHeight *float64 `toml:"cell-height"`
	LogLevel   *string  `toml:"log-level"`
}

// PhysicsConfig maps gesture tuning.
type PhysicsConfig struct {
	DragRotation    *float64 `toml:"drag-rotation"`
	ThrowSpeed      *float64 `toml:"throw-speed"`
	ProjectionMs    *float64 `toml:"projection-ms"`
	RotationKick    *float64 `toml:"rotation-kick"`
	ThrowDurationMs *int     `toml:"throw-duration-ms"`
	ThrowScale      *float64 `toml:"throw-scale"`
	RestJitter      *float64 `toml:"rest-jitter"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
