package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// Config holds all anipar configuration
type Config struct {
	Batch   BatchConfig   `toml:"batch"`
	Output  OutputConfig  `toml:"output"`
	Logging LoggingConfig `toml:"logging"`
	Daemon  DaemonConfig  `toml:"daemon"`
}

// BatchConfig controls parallel parsing of title lists
type BatchConfig struct {
	Workers int `toml:"workers"` // 0 = number of CPUs
}

// OutputConfig controls how results are printed and where reports go
type OutputConfig struct {
	Format    string `toml:"format"` // json, yaml, toml, csv, text
	ReportDir string `toml:"report_dir"`
}

// LoggingConfig holds zerolog and file rotation settings
type LoggingConfig struct {
	Level      string `toml:"level"` // debug, info, warn, error
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DaemonConfig holds the inbox watcher settings
type DaemonConfig struct {
	Inbox       string `toml:"inbox"`
	Processed   string `toml:"processed"`
	MetricsAddr string `toml:"metrics_addr"` // empty disables /metrics

	// OnReport is a command run after each report; the report's JSON path is appended
	OnReport []string `toml:"on_report"`
}

// Formats lists the accepted output formats
var Formats = []string{"json", "yaml", "toml", "csv", "text"}

var levels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Batch: BatchConfig{
			Workers: 0,
		},
		Output: OutputConfig{
			Format:    "text",
			ReportDir: filepath.Join(dataDir, "reports"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(dataDir, "anipar.log"),
			MaxSizeMB:  1,
			MaxBackups: 2,
		},
		Daemon: DaemonConfig{
			Inbox:     filepath.Join(dataDir, "inbox"),
			Processed: filepath.Join(dataDir, "inbox", "processed"),
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "anipar")
	}
	return filepath.Join(os.TempDir(), "anipar")
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}

	return filepath.Join(configDir, "anipar", "config.toml"), nil
}

// Load reads the default config file, creating it with defaults if it doesn't exist
func Load() (*Config, error) {
	configFile, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(afero.NewOsFs(), configFile)
}

// LoadFrom reads the config at path. A missing file is created with defaults;
// keys absent from an existing file keep their default values.
func LoadFrom(fs afero.Fs, path string) (*Config, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	if !exists {
		cfg := DefaultConfig()
		if err := SaveTo(fs, path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to the default location
func Save(cfg *Config) error {
	configFile, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(afero.NewOsFs(), configFile, cfg)
}

// SaveTo writes the config to path, creating parent directories
func SaveTo(fs afero.Fs, path string, cfg *Config) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Batch.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d (must be >= 0)", c.Batch.Workers)
	}

	if !ValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be json, yaml, toml, csv, or text)", c.Output.Format)
	}

	if !levels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}

	if c.Daemon.Inbox != "" && filepath.Clean(c.Daemon.Inbox) == filepath.Clean(c.Daemon.Processed) {
		return fmt.Errorf("daemon processed directory must differ from inbox: %s", c.Daemon.Inbox)
	}

	return nil
}

// ValidFormat reports whether format is one of Formats
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}
