// Package config loads till's configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" parse directly.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Backend configures the remote sales service.
type Backend struct {
	BaseURL       string   `yaml:"base_url"`
	APIToken      string   `yaml:"api_token"`
	SubmitTimeout Duration `yaml:"submit_timeout"`
}

// Sync configures drain and probe cadence.
type Sync struct {
	Interval      Duration `yaml:"interval"`
	ProbeInterval Duration `yaml:"probe_interval"`
	ProbePath     string   `yaml:"probe_path"`
}

// Config is the full till configuration.
type Config struct {
	DataDir    string  `yaml:"data_dir"`
	ListenAddr string  `yaml:"listen_addr"`
	Backend    Backend `yaml:"backend"`
	Sync       Sync    `yaml:"sync"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:    defaultDataDir(),
		ListenAddr: "127.0.0.1:7777",
		Backend: Backend{
			SubmitTimeout: Duration(15 * time.Second),
		},
		Sync: Sync{
			Interval:      Duration(5 * time.Minute),
			ProbeInterval: Duration(30 * time.Second),
			ProbePath:     "/api/health/",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is fine when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TILL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TILL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TILL_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("TILL_API_TOKEN"); v != "" {
		cfg.Backend.APIToken = v
	}
	if v := os.Getenv("TILL_SUBMIT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.SubmitTimeout = Duration(d)
		}
	}
	if v := os.Getenv("TILL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = Duration(d)
		}
	}
	if v := os.Getenv("TILL_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.ProbeInterval = Duration(d)
		}
	}
}

// Validate checks invariants needed by the serve and sync commands.
func (c Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	return nil
}

// EnsureDataDir creates the data directory if needed and returns it.
func (c Config) EnsureDataDir() (string, error) {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return c.DataDir, nil
}

// ProbeURL is the absolute health URL the connectivity monitor polls.
func (c Config) ProbeURL() string {
	return c.Backend.BaseURL + c.Sync.ProbePath
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "till")
}
