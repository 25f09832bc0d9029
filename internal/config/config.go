// Package config loads and persists the client's YAML settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/voxlog/voxlog/internal/store"
	"github.com/voxlog/voxlog/internal/transcribe"
	"github.com/voxlog/voxlog/internal/transform"
)

// Config is the persisted client configuration.
type Config struct {
	DBPath   string `yaml:"dbPath"`
	LogLevel string `yaml:"logLevel"`

	Retention store.RetentionPolicy `yaml:"retention"`

	Transcription transcribe.HTTPConfig  `yaml:"transcription"`
	Chat          transform.OpenAIConfig `yaml:"chat"`
}

// DefaultPath returns the conventional config file location for the current
// user, falling back to the working directory when no config dir exists.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "voxlog.yaml"
	}
	return filepath.Join(dir, "voxlog", "config.yaml")
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	dbPath := "voxlog.db"
	if dir, err := os.UserConfigDir(); err == nil {
		dbPath = filepath.Join(dir, "voxlog", "voxlog.db")
	}
	return Config{
		DBPath:   dbPath,
		LogLevel: "info",
		Retention: store.RetentionPolicy{
			Strategy: store.RetainForever,
		},
		Transcription: transcribe.HTTPConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "whisper-1",
		},
		Chat: transform.OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
	}
}

// Load reads the config file at path. A missing file yields the defaults; a
// present but malformed file is an error rather than a silent reset.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("dbPath must not be empty")
	}
	if err := c.Retention.Validate(); err != nil {
		return err
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown logLevel %q", c.LogLevel)
	}
}
