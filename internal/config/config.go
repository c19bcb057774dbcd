// Package config loads engine configuration from an optional YAML file
// with FRESHMART_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Runner   RunnerConfig   `yaml:"runner"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RunnerConfig struct {
	// TriggerEvery is the cadence of the periodic invoker, e.g. "1m".
	// Empty disables the internal trigger (manual invocations only).
	TriggerEvery string `yaml:"triggerEvery"`
	TaskTimeout  int    `yaml:"taskTimeout"` // seconds
	ClaimLease   int    `yaml:"claimLease"`  // seconds
	EnableDebug  bool   `yaml:"enableDebug"`
}

const (
	DefaultServerAddr         = ":8080"
	DefaultServerReadTimeout  = 30
	DefaultServerWriteTimeout = 30
	DefaultDatabasePath       = "freshmart.db"
	DefaultTriggerEvery       = "1m"
	DefaultTaskTimeout        = 60
	DefaultClaimLease         = 120
)

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultServerAddr,
			ReadTimeout:  DefaultServerReadTimeout,
			WriteTimeout: DefaultServerWriteTimeout,
		},
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Runner: RunnerConfig{
			TriggerEvery: DefaultTriggerEvery,
			TaskTimeout:  DefaultTaskTimeout,
			ClaimLease:   DefaultClaimLease,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// given, then environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Runner.TaskTimeout < 1 {
		return nil, fmt.Errorf("runner.taskTimeout must be at least 1 second")
	}
	if cfg.Runner.ClaimLease < 1 {
		return nil, fmt.Errorf("runner.claimLease must be at least 1 second")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setEnv("FRESHMART_SERVER_ADDR", &cfg.Server.Addr)
	setEnvInt("FRESHMART_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setEnvInt("FRESHMART_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setEnv("FRESHMART_DB_PATH", &cfg.Database.Path)
	setEnv("FRESHMART_RUNNER_TRIGGER_EVERY", &cfg.Runner.TriggerEvery)
	setEnvInt("FRESHMART_RUNNER_TASK_TIMEOUT", &cfg.Runner.TaskTimeout)
	setEnvInt("FRESHMART_RUNNER_CLAIM_LEASE", &cfg.Runner.ClaimLease)
}

func setEnv(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setEnvInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
