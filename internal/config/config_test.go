package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: sk-ant-test
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic:
      api_key: sk-ant-test
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadRequiresAPIKeyForDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api_key error, got %v", err)
	}
}

func TestLoadAllowsOllamaWithoutAPIKey(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: ollama
  providers:
    ollama:
      base_url: http://localhost:11434
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: sk-ant-test
      default_model: claude-opus-4-6
logging:
  level: debug
  format: simple
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.LLM.Providers["anthropic"].DefaultModel != "claude-opus-4-6" {
		t.Fatalf("expected default model override, got %q", cfg.LLM.Providers["anthropic"].DefaultModel)
	}
}

func TestLoadValidatesLoggingFormat(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: sk-ant-test
logging:
  format: nope
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("REFLEXAGENT_HOST", "127.0.0.1")
	t.Setenv("REFLEXAGENT_PORT", "9191")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "sk-ant-from-env")
	t.Setenv("LLM_MODEL_ID", "claude-opus-4-6")

	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected host override, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 9191 {
		t.Fatalf("expected port override, got %d", cfg.Server.Port)
	}
	if cfg.LLM.Providers["anthropic"].APIKey != "sk-ant-from-env" {
		t.Fatalf("expected api key override, got %q", cfg.LLM.Providers["anthropic"].APIKey)
	}
	if cfg.LLM.Providers["anthropic"].DefaultModel != "claude-opus-4-6" {
		t.Fatalf("expected model override, got %q", cfg.LLM.Providers["anthropic"].DefaultModel)
	}
}

func TestLoadWithoutFileReadsFromEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "sk-ant-from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Fatalf("expected default provider from env, got %q", cfg.LLM.DefaultProvider)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "reflexagent.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
