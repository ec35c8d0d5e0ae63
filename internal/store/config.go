package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the user configuration read from config.yaml.
type Config struct {
	// DB is the SQLite database path. Relative paths are resolved against the config dir.
	DB string `yaml:"db,omitempty"`

	// ReviewIntervalDays is used when the database has no stored review interval.
	ReviewIntervalDays int `yaml:"reviewIntervalDays,omitempty"`

	LogLevel  string `yaml:"logLevel,omitempty"`
	LogFormat string `yaml:"logFormat,omitempty"` // text|json

	// Listen is the address `north serve` binds to.
	Listen string `yaml:"listen,omitempty"`
}

const (
	defaultDBName = "north.db"
	defaultListen = "127.0.0.1:7070"
)

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.north).
	if v := strings.TrimSpace(os.Getenv("NORTH_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".north"), nil
}

// ConfigPath returns $NORTH_CONFIG when set, otherwise <config dir>/config.yaml.
func ConfigPath() (string, error) {
	if v := strings.TrimSpace(os.Getenv("NORTH_CONFIG")); v != "" {
		return v, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadConfig reads the config at path (ConfigPath when empty). A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg := &Config{}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyDefaults(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(dir string) error {
	c.DB = strings.TrimSpace(c.DB)
	switch {
	case c.DB == "":
		c.DB = filepath.Join(dir, defaultDBName)
	case strings.HasPrefix(c.DB, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.DB = filepath.Join(home, c.DB[2:])
	case !filepath.IsAbs(c.DB):
		c.DB = filepath.Join(dir, c.DB)
	}
	if c.ReviewIntervalDays < 0 {
		return fmt.Errorf("reviewIntervalDays must not be negative (got %d)", c.ReviewIntervalDays)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "text":
		c.LogFormat = "text"
	case "json":
		c.LogFormat = "json"
	default:
		return fmt.Errorf("invalid logFormat %q (want text or json)", c.LogFormat)
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = defaultListen
	}
	return nil
}

// SaveConfig writes cfg to path as YAML, creating the directory when needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return atomicWriteFile(dir, ".config-*.yaml", path, b, 0o644)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
