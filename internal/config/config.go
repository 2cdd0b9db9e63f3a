// Package config loads ctcoach settings from a YAML file, an optional .env
// file, and environment overrides, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvAPIKey       = "GEMINI_API_KEY"
	EnvAPIKeyLegacy = "API_KEY"
	EnvModel        = "CTCOACH_MODEL"
	EnvLogLevel     = "CTCOACH_LOG_LEVEL"
	EnvDataDir      = "CTCOACH_DATA_DIR"
)

// DefaultDirName is the data directory created under the user's home.
const DefaultDirName = ".ctcoach"

// ConfigFileName is looked up inside the data directory.
const ConfigFileName = "config.yaml"

// Config is the full application configuration.
type Config struct {
	DataDir string        `yaml:"data_dir" validate:"required"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig configures the coaching backend.
type GeminiConfig struct {
	// APIKey is normally supplied through the environment, not the file.
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// SessionConfig tunes the state machine.
type SessionConfig struct {
	RetryFailedFeedback bool `yaml:"retry_failed_feedback"`
}

// LoggingConfig selects log level and sinks.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// File is the rotating JSON log. Relative paths are resolved against
	// DataDir; empty disables file logging.
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Gemini: GeminiConfig{
			Model:   "gemini-2.5-flash",
			Timeout: 60 * time.Second,
		},
		Session: SessionConfig{RetryFailedFeedback: true},
		Logging: LoggingConfig{
			Level:   "info",
			File:    "ctcoach.log",
			Console: true,
		},
	}
}

// DefaultDataDir returns ~/.ctcoach.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Load reads the configuration. path may be empty, in which case
// config.yaml in the data directory is used if it exists.
func Load(path string) (Config, error) {
	// A missing .env is normal; any other failure is reported.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		d, err := DefaultDataDir()
		if err != nil {
			return Config{}, err
		}
		dataDir = d
	}
	cfg := Default(dataDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(dataDir, ConfigFileName)
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Gemini.APIKey = v
	} else if v := os.Getenv(EnvAPIKeyLegacy); v != "" && c.Gemini.APIKey == "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func (c *Config) resolvePaths() {
	if c.Logging.File != "" && !filepath.IsAbs(c.Logging.File) {
		c.Logging.File = filepath.Join(c.DataDir, c.Logging.File)
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HasAPIKey reports whether a Gemini key is configured.
func (c Config) HasAPIKey() bool {
	return strings.TrimSpace(c.Gemini.APIKey) != ""
}
