// Package config loads and validates the application configuration from a
// YAML file, with VERO_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vero/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	LLM    LLMConfig    `yaml:"llm"`
	Tools  ToolsConfig  `yaml:"tools"`
	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// AgentConfig holds agent behavior settings.
type AgentConfig struct {
	Strategy     string  `yaml:"strategy"` // "simple", "react", "funccall"
	Name         string  `yaml:"name"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTurns     int     `yaml:"max_turns"`
	Temperature  float64 `yaml:"temperature"`
}

// LLMConfig holds chat completion provider settings.
type LLMConfig struct {
	Name           string               `yaml:"name"`
	BaseURL        string               `yaml:"base_url"`
	APIKey         string               `yaml:"api_key"`
	Model          string               `yaml:"model"`
	MaxTokens      int                  `yaml:"max_tokens"`
	ConnTimeout    time.Duration        `yaml:"conn_timeout"`
	RespTimeout    time.Duration        `yaml:"resp_timeout"`
	Pool           PoolConfig           `yaml:"pool"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for the LLM client.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for the LLM client.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ToolsConfig holds builtin tool settings.
type ToolsConfig struct {
	Calculator       bool   `yaml:"calculator"`
	Search           bool   `yaml:"search"`
	SearchBaseURL    string `yaml:"search_base_url"`
	SearchPerMinute  int    `yaml:"search_per_minute"`
	SearchMaxResults int    `yaml:"search_max_results"`
	SchemaValidation bool   `yaml:"schema_validation"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Strategy:    "funccall",
			Name:        "vero",
			MaxTurns:    5,
			Temperature: 0,
		},
		LLM: LLMConfig{
			Name:        "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			ConnTimeout: 30 * time.Second,
			RespTimeout: 120 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Tools: ToolsConfig{
			Calculator:       true,
			Search:           true,
			SearchPerMinute:  30,
			SchemaValidation: true,
			SearchMaxResults: 3,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing file
// is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, domain.NewDomainError("config.Load", domain.ErrConfigLoad, err.Error())
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, domain.NewDomainError("config.Load", domain.ErrConfigLoad, fmt.Sprintf("parse %s: %v", path, err))
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps VERO_* env vars to config fields. Env vars take
// precedence over file values.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VERO_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	// Also honor the conventional variable so existing shells work unchanged.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("VERO_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("VERO_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("VERO_AGENT_STRATEGY"); v != "" {
		cfg.Agent.Strategy = v
	}
	if v := os.Getenv("VERO_AGENT_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxTurns = n
		}
	}
	if v := os.Getenv("VERO_AGENT_SYSTEM_PROMPT"); v != "" {
		cfg.Agent.SystemPrompt = v
	}
	if v := os.Getenv("VERO_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("VERO_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("VERO_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("VERO_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("VERO_TOOLS_SEARCH_BASE_URL"); v != "" {
		cfg.Tools.SearchBaseURL = v
	}
}

var validStrategies = map[string]bool{
	"simple":   true,
	"react":    true,
	"funccall": true,
}

// Validate checks cross-field constraints. Provider credentials are checked
// by the LLM client itself so offline commands still work.
func Validate(cfg *Config) error {
	if !validStrategies[strings.ToLower(cfg.Agent.Strategy)] {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("unknown agent strategy %q (want simple, react, or funccall)", cfg.Agent.Strategy))
	}
	if cfg.Agent.MaxTurns < 1 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("agent max_turns must be >= 1, got %d", cfg.Agent.MaxTurns))
	}
	if cfg.Agent.Temperature < 0 || cfg.Agent.Temperature > 2 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			fmt.Sprintf("agent temperature must be in [0, 2], got %g", cfg.Agent.Temperature))
	}
	if cfg.Tools.SearchPerMinute < 0 {
		return domain.NewDomainError("config.Validate", domain.ErrConfigLoad,
			"tools search_per_minute must not be negative")
	}
	return nil
}
