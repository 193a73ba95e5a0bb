// Package config is reflexagentd's configuration loader: an optional
// YAML file (config.go/loader.go pattern — env-var expansion,
// strict unknown-field decoding, post-load defaults and validation) plus
// the CLI/environment variables spec.md §6 names, composed with
// internal/reflection's and internal/retry's own FromEnv readers for the
// Reflexion and Retry knobs.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brightforge/reflexagent/internal/reflection"
	"github.com/brightforge/reflexagent/internal/retry"
)

// Config is reflexagentd's top-level configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	LLM       LLMConfig         `yaml:"llm"`
	Logging   LoggingConfig     `yaml:"logging"`
	Reflexion reflection.Config `yaml:"-"`
	Retry     retry.Config      `yaml:"-"`
}

// ServerConfig configures the webhook front door's HTTP listener
// (internal/webhook's Mux, serving /implement, /healthz, and /metrics).
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LLMConfig selects and configures the LLM provider dialect (spec.md §4.5,
// §6: LLM_PROVIDER, LLM_MODEL_ID, LLM_API_KEY).
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig is one provider dialect's credentials and defaults.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// LoggingConfig controls zerolog's level and console/JSON rendering
// (spec.md §6: LOG_LEVEL, LOG_FORMAT).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path (if non-empty) as a YAML config file, then overlays the
// environment variables spec.md §6 names, applies defaults, and validates
// the result. An empty path skips the file and reads purely from the
// environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		decoder := yaml.NewDecoder(strings.NewReader(expanded))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if err := decoder.Decode(&struct{}{}); err != io.EOF {
			return nil, fmt.Errorf("failed to parse config: expected single document")
		}
	}

	applyEnvOverrides(&cfg)
	cfg.Reflexion = reflection.FromEnv()
	cfg.Retry = retry.FromEnv()
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnvOverrides parses the exact environment variables spec.md §6
// lists for provider selection, plus REFLEXAGENT_HOST/REFLEXAGENT_PORT for
// the HTTP listener (this binary's own addition, named after
// cmd/nexus's NEXUS_HTTP_PORT/NEXUS_HOST convention, since spec.md doesn't
// name a transport env var).
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("REFLEXAGENT_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("REFLEXAGENT_PORT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = parsed
		}
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider != "" {
		cfg.LLM.DefaultProvider = provider
	}
	if provider == "" {
		provider = strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	}
	if provider != "" {
		if cfg.LLM.Providers == nil {
			cfg.LLM.Providers = map[string]LLMProviderConfig{}
		}
		entry := cfg.LLM.Providers[provider]
		if v := strings.TrimSpace(os.Getenv("LLM_MODEL_ID")); v != "" {
			entry.DefaultModel = v
		}
		if v := strings.TrimSpace(os.Getenv("LLM_API_KEY")); v != "" {
			entry.APIKey = v
		}
		// Provider-specific key env vars, matching each dialect's own SDK
		// convention, take precedence over the generic LLM_API_KEY.
		switch provider {
		case "anthropic":
			if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
				entry.APIKey = v
			}
		case "google":
			if v := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); v != "" {
				entry.APIKey = v
			}
		case "ollama":
			if v := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); v != "" {
				entry.BaseURL = v
			}
		}
		cfg.LLM.Providers[provider] = entry
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		cfg.Logging.Format = v
	}
}

// ConfigValidationError reports one or more configuration problems found
// by validateConfig, matching the original config package's multi-issue
// aggregation style.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, "server.port must be between 0 and 65535")
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	switch provider {
	case "anthropic", "google", "ollama":
	default:
		issues = append(issues, fmt.Sprintf("llm.default_provider must be \"anthropic\", \"google\", or \"ollama\" (got %q)", cfg.LLM.DefaultProvider))
	}
	if provider != "" {
		entry, ok := cfg.LLM.Providers[provider]
		if !ok || (provider != "ollama" && strings.TrimSpace(entry.APIKey) == "") {
			issues = append(issues, fmt.Sprintf("llm.providers[%s].api_key is required for the default provider", provider))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "simple", "detailed", "json":
	default:
		issues = append(issues, "logging.format must be \"simple\", \"detailed\", or \"json\"")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
