// Package config provides configuration management for unihist.
// Values come from built-in defaults, an optional YAML file
// (~/.unihist/config.yaml) and UNIHIST_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shellsync/unihist/internal/core"
	"github.com/shellsync/unihist/internal/timefmt"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRetentionSize = 100000
	DefaultMaxResults    = 10
	DefaultContextLines  = 3
	DefaultRecentCount   = 20
)

// Config holds everything the history engines and the command surface need.
type Config struct {
	// StorePath is the shared history file, usually on a network filesystem.
	StorePath string `yaml:"store_path"`

	// BackupDir receives timestamped copies of the store. Empty means the
	// directory containing StorePath.
	BackupDir string `yaml:"backup_dir"`

	// JournalPath is the machine-local SQLite journal.
	JournalPath string `yaml:"journal_path"`

	// RetentionSize bounds how many records a session reloads after sync.
	RetentionSize int `yaml:"retention_size"`

	MaxResults   int    `yaml:"max_results"`
	ContextLines int    `yaml:"context_lines"`
	RecentCount  int    `yaml:"recent_count"`
	TimeFormat   string `yaml:"time_format"`
	LogLevel     string `yaml:"log_level"`
	Color        bool   `yaml:"color"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		StorePath:     core.StoreFile(),
		JournalPath:   core.JournalFile(),
		RetentionSize: DefaultRetentionSize,
		MaxResults:    DefaultMaxResults,
		ContextLines:  DefaultContextLines,
		RecentCount:   DefaultRecentCount,
		TimeFormat:    string(timefmt.Compact),
		LogLevel:      "info",
		Color:         true,
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists) and the environment. An empty path means core.ConfigFile().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = core.ConfigFile()
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.StorePath = getEnv("UNIHIST_FILE", c.StorePath)
	c.BackupDir = getEnv("UNIHIST_BACKUP_DIR", c.BackupDir)
	c.JournalPath = getEnv("UNIHIST_JOURNAL", c.JournalPath)
	c.RetentionSize = getEnvInt("UNIHIST_SIZE", c.RetentionSize)
	c.TimeFormat = getEnv("UNIHIST_TIME_FORMAT", c.TimeFormat)
	c.LogLevel = getEnv("UNIHIST_LOG_LEVEL", c.LogLevel)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Color = false
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StorePath) == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.RetentionSize <= 0 {
		return fmt.Errorf("retention size must be > 0")
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be > 0")
	}
	if c.ContextLines < 0 {
		return fmt.Errorf("context lines must be >= 0")
	}
	if c.RecentCount <= 0 {
		return fmt.Errorf("recent count must be > 0")
	}
	if _, err := timefmt.ParseMode(c.TimeFormat); err != nil {
		return err
	}
	return nil
}

// TimeMode returns the configured timestamp mode.
func (c *Config) TimeMode() timefmt.Mode {
	mode, err := timefmt.ParseMode(c.TimeFormat)
	if err != nil {
		return timefmt.Compact
	}
	return mode
}

// ResolvedBackupDir returns BackupDir, defaulting to the store's directory.
func (c *Config) ResolvedBackupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Dir(c.StorePath)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
