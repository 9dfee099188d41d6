// Package config loads planner settings from the environment.
//
// Every option is read from a PLANNER_-prefixed environment variable, e.g.
// PLANNER_PROVIDER or PLANNER_STATE_DIR. Unset options fall back to
// defaults that make the binary usable with no configuration at all: the
// deterministic heuristic engine and a file store under the working
// directory.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the resolved planner configuration.
type Config struct {
	// Provider selects the reasoning engine: heuristic, llmcli, or script.
	Provider string `mapstructure:"provider"`
	// Timeout bounds one reasoning-engine call, in seconds.
	Timeout int `mapstructure:"timeout"`
	// LLMCommand is the external command line for the llmcli provider.
	LLMCommand string `mapstructure:"llm_command"`
	// FakeResponsesFile is the fixture script for the script provider.
	FakeResponsesFile string `mapstructure:"fake_responses_file"`

	// EnableQuestions turns on the clarifying-questions detour.
	EnableQuestions bool `mapstructure:"enable_questions"`
	// EnableCritic turns on the critic validation loop.
	EnableCritic bool `mapstructure:"enable_critic"`
	// MaxRevisions bounds critic-triggered plan regenerations.
	MaxRevisions int `mapstructure:"max_revisions"`
	// MaxAttempts bounds engine calls per stage.
	MaxAttempts int `mapstructure:"max_attempts"`

	// Store selects the snapshot backend: file, memory, or redis.
	Store string `mapstructure:"store"`
	// StateDir is the file store root.
	StateDir string `mapstructure:"state_dir"`
	// RedisAddr is the redis store address, host:port.
	RedisAddr string `mapstructure:"redis_addr"`
	// RedisPrefix namespaces redis keys.
	RedisPrefix string `mapstructure:"redis_prefix"`

	// MetricsAddr, when set, serves Prometheus metrics over HTTP for the
	// duration of the invocation.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLANNER")
	v.AutomaticEnv()

	v.SetDefault("provider", "heuristic")
	v.SetDefault("timeout", 60)
	v.SetDefault("llm_command", "")
	v.SetDefault("fake_responses_file", "")
	v.SetDefault("enable_questions", false)
	v.SetDefault("enable_critic", false)
	v.SetDefault("max_revisions", 3)
	v.SetDefault("max_attempts", 2)
	v.SetDefault("store", StoreFile)
	v.SetDefault("state_dir", ".planweave")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "planweave")
	v.SetDefault("metrics_addr", "")

	// AutomaticEnv alone does not surface env-only keys through Unmarshal,
	// so bind each key explicitly.
	for _, key := range []string{
		"provider", "timeout", "llm_command", "fake_responses_file",
		"enable_questions", "enable_critic", "max_revisions", "max_attempts",
		"store", "state_dir", "redis_addr", "redis_prefix", "metrics_addr",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Provider {
	case "heuristic", "llmcli", "script":
	default:
		return fmt.Errorf("unknown provider %q (want heuristic, llmcli, or script)", c.Provider)
	}
	if c.Provider == "llmcli" && c.LLMCommand == "" {
		return fmt.Errorf("provider llmcli requires PLANNER_LLM_COMMAND")
	}
	if c.Provider == "script" && c.FakeResponsesFile == "" {
		return fmt.Errorf("provider script requires PLANNER_FAKE_RESPONSES_FILE")
	}

	switch c.Store {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want file, memory, or redis)", c.Store)
	}
	if c.Store == StoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("store redis requires PLANNER_REDIS_ADDR")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Timeout)
	}
	if c.MaxRevisions < 0 {
		return fmt.Errorf("max_revisions must not be negative, got %d", c.MaxRevisions)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	return nil
}

// EngineTimeout returns the per-call engine timeout as a duration.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
