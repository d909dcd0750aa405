// Package config loads the engine's YAML configuration file. Every field has
// a working default so the engine runs with no file at all.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "2s" or
// "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds the engine's runtime knobs.
type Config struct {
	// PollInterval is the cadence of the telemetry and activity cycles.
	PollInterval Duration `yaml:"poll_interval"`
	// SaveInterval is how often the session document is flushed to disk.
	SaveInterval Duration `yaml:"save_interval"`
	// ProcessLimit caps how many of the top processes are reported; zero
	// means no cap.
	ProcessLimit int `yaml:"process_limit"`
	// DataPath overrides the default location of the JSON data file.
	DataPath string `yaml:"data_path"`
	// LogPath is where structured logs are written; empty means stderr.
	LogPath string `yaml:"log_path"`
	// LogLevel is a zap level name (debug, info, warn, error); empty means info.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		PollInterval: Duration{2 * time.Second},
		SaveInterval: Duration{30 * time.Second},
		ProcessLimit: 12,
	}
}

// Load reads the configuration at path, filling unset fields with defaults.
// A missing file is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval = Default().PollInterval
	}
	if cfg.SaveInterval.Duration <= 0 {
		cfg.SaveInterval = Default().SaveInterval
	}
	if cfg.ProcessLimit < 0 {
		cfg.ProcessLimit = 0
	}
	return cfg, nil
}
