// Package config loads mira settings.
//
// Values are resolved in order: built-in defaults, the YAML file
// (~/.config/mira/config.yaml), MIRA_* environment variables, then command
// line flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rhystmorgan/mira/internal/types"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type RemoteConfig struct {
	Origin     string        `yaml:"origin"`
	Path       string        `yaml:"path"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

type UIConfig struct {
	PageSize int `yaml:"page_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	Backend     string `yaml:"backend"` // file or sqlite
	DataFile    string `yaml:"data_file,omitempty"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	JournalFile string `yaml:"journal_file,omitempty"`

	// Passphrase enables encryption of the data file. Environment only.
	Passphrase types.Secret `yaml:"-"`
}

type Config struct {
	Remote RemoteConfig `yaml:"remote"`
	UI     UIConfig     `yaml:"ui"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

func Default() Config {
	return Config{
		Remote: RemoteConfig{
			Origin:     "http://localhost:8080",
			Path:       "/data",
			Timeout:    10 * time.Second,
			RetryCount: 3,
		},
		UI: UIConfig{
			PageSize: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Backend: BackendFile,
		},
	}
}

// Dir returns the XDG config directory for mira.
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "mira")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mira")
}

// DataDir returns the XDG data directory for mira.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "mira")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "mira")
}

func Path() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the default config file and applies the environment.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads config from path, falling back to defaults when the file
// does not exist, then applies the environment and validates.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config: %w", err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg.ApplyEnv()
	cfg.fillPaths()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MIRA_* environment variables.
func (c *Config) ApplyEnv() {
	c.Remote.Origin = getEnvOrDefault("MIRA_ORIGIN", c.Remote.Origin)
	c.Remote.Path = getEnvOrDefault("MIRA_PATH", c.Remote.Path)
	c.Remote.Timeout = parseDurationOrDefault("MIRA_TIMEOUT", c.Remote.Timeout)
	c.Remote.RetryCount = parseIntOrDefault("MIRA_RETRY_COUNT", c.Remote.RetryCount)
	c.UI.PageSize = parseIntOrDefault("MIRA_PAGE_SIZE", c.UI.PageSize)
	c.Log.Level = getEnvOrDefault("MIRA_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvOrDefault("MIRA_LOG_FILE", c.Log.File)
	c.Server.Addr = getEnvOrDefault("MIRA_ADDR", c.Server.Addr)
	c.Server.Backend = getEnvOrDefault("MIRA_BACKEND", c.Server.Backend)
	c.Server.DataFile = getEnvOrDefault("MIRA_DATA_FILE", c.Server.DataFile)
	c.Server.SQLitePath = getEnvOrDefault("MIRA_SQLITE_PATH", c.Server.SQLitePath)
	c.Server.JournalFile = getEnvOrDefault("MIRA_JOURNAL_FILE", c.Server.JournalFile)
	c.Server.Passphrase = types.Secret(getEnvOrDefault("MIRA_PASSPHRASE", c.Server.Passphrase.Reveal()))

	if IsDebugEnabled() {
		c.Log.Level = "debug"
	}
}

func (c *Config) fillPaths() {
	dir := DataDir()
	if dir == "" {
		return
	}
	if c.Server.DataFile == "" {
		c.Server.DataFile = filepath.Join(dir, "contacts.json")
	}
	if c.Server.SQLitePath == "" {
		c.Server.SQLitePath = filepath.Join(dir, "contacts.db")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(dir, "mira.log")
	}
}

func (c *Config) Validate() error {
	if c.Remote.Origin == "" {
		return fmt.Errorf("remote origin must not be empty")
	}
	if !strings.HasPrefix(c.Remote.Origin, "http://") && !strings.HasPrefix(c.Remote.Origin, "https://") {
		return fmt.Errorf("invalid remote origin: %s (must start with http:// or https://)", c.Remote.Origin)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", c.Remote.Timeout)
	}
	if c.Remote.RetryCount < 1 {
		return fmt.Errorf("retry count must be at least 1, got: %d", c.Remote.RetryCount)
	}
	if c.UI.PageSize < 1 {
		return fmt.Errorf("page size must be positive, got: %d", c.UI.PageSize)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn or error)", c.Log.Level)
	}

	switch c.Server.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("invalid backend: %s (must be '%s' or '%s')", c.Server.Backend, BackendFile, BackendSQLite)
	}

	return nil
}

// Save writes the config as YAML, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func IsDebugEnabled() bool {
	return os.Getenv("MIRA_DEBUG") == "true" || os.Getenv("MIRA_DEBUG") == "1"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
