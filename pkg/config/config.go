// Package config provides configuration loading, validation, and secrets
// management for the proposal engine.
//
// A single global Config instance is maintained in memory, protected by a
// mutex. GetConfig() returns the config BY VALUE (copy, not reference) to
// prevent external mutation; all loading goes through LoadConfig with
// validation first.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"northstar/pkg/logx"
)

// Defaults applied for any field missing from the config file.
const (
	DefaultListenAddr      = ":8080"
	DefaultDatabasePath    = "northstar.db"
	DefaultEventLogDir     = "logs"
	DefaultAdminUser       = "admin"
	DefaultEnrichLatencyMS = 500
	DefaultAnthropicModel  = "claude-3-5-haiku-latest"
	AnthropicAPIKeySecret  = "ANTHROPIC_API_KEY"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig holds session archive settings.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AdminConfig holds admin endpoint credentials. Password may be empty, in
// which case admin routes are served without auth (development mode).
type AdminConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// EnrichmentConfig controls the mock enrichment services.
type EnrichmentConfig struct {
	LatencyMS   int     `yaml:"latency_ms"`
	FailureRate float64 `yaml:"failure_rate"`
	Seed        int64   `yaml:"seed"`
}

// Latency returns the configured latency as a duration.
func (e EnrichmentConfig) Latency() time.Duration {
	return time.Duration(e.LatencyMS) * time.Millisecond
}

// LLMConfig controls the optional LLM-backed field extractor. The API key is
// never stored in the config file; it comes from the secrets file or the
// ANTHROPIC_API_KEY environment variable.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// EventLogConfig controls the JSONL audit event writer.
type EventLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Config is the top-level configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Admin      AdminConfig      `yaml:"admin"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	LLM        LLMConfig        `yaml:"llm"`
	EventLog   EventLogConfig   `yaml:"eventlog"`
}

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config *Config
	logger *logx.Logger
	mu     sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// Defaults returns a config populated with every default value.
func Defaults() Config {
	return Config{
		Server:   ServerConfig{ListenAddr: DefaultListenAddr},
		Database: DatabaseConfig{Enabled: true, Path: DefaultDatabasePath},
		Admin:    AdminConfig{User: DefaultAdminUser},
		Enrichment: EnrichmentConfig{
			LatencyMS: DefaultEnrichLatencyMS,
		},
		LLM:      LLMConfig{Model: DefaultAnthropicModel},
		EventLog: EventLogConfig{Enabled: true, Dir: DefaultEventLogDir},
	}
}

// LoadConfig reads the YAML config file into the global singleton. A missing
// file is not an error; defaults apply. Must be called before GetConfig.
func LoadConfig(path string) error {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		getLogger().Info("No config file at %s, using defaults", path)
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		getLogger().Info("Loaded config from %s", path)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	config = &cfg
	return nil
}

// SetConfig installs a config directly. Intended for tests.
func SetConfig(cfg Config) error {
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	config = &cfg
	return nil
}

// GetConfig returns the current configuration by value.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()

	if config == nil {
		return Config{}, fmt.Errorf("config not loaded; call LoadConfig first")
	}
	return *config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Admin.User == "" {
		cfg.Admin.User = DefaultAdminUser
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultAnthropicModel
	}
	if cfg.EventLog.Dir == "" {
		cfg.EventLog.Dir = DefaultEventLogDir
	}
}

func validate(cfg *Config) error {
	if cfg.Enrichment.FailureRate < 0 || cfg.Enrichment.FailureRate > 1 {
		return fmt.Errorf("enrichment.failure_rate must be between 0 and 1, got %f", cfg.Enrichment.FailureRate)
	}
	if cfg.Enrichment.LatencyMS < 0 {
		return fmt.Errorf("enrichment.latency_ms cannot be negative, got %d", cfg.Enrichment.LatencyMS)
	}
	return nil
}

// GetAdminPassword returns the password protecting admin routes, preferring
// the secrets file over the config file.
func GetAdminPassword() string {
	if value, err := GetSecret("ADMIN_PASSWORD"); err == nil {
		return value
	}

	cfg, err := GetConfig()
	if err != nil {
		return ""
	}
	return cfg.Admin.Password
}
