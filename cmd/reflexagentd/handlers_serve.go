package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brightforge/reflexagent/internal/agent"
	"github.com/brightforge/reflexagent/internal/agent/providers"
	"github.com/brightforge/reflexagent/internal/config"
	"github.com/brightforge/reflexagent/internal/prompt"
	"github.com/brightforge/reflexagent/internal/reflection"
	"github.com/brightforge/reflexagent/internal/reflection/cache"
	"github.com/brightforge/reflexagent/internal/retry"
	"github.com/brightforge/reflexagent/internal/webhook"
)

// runServe loads configuration, wires every collaborator, and serves the
// webhook front door until a shutdown signal arrives, matching the
// cmd/nexus's runServe (load config, build server, signal.NotifyContext,
// goroutine + errCh + select, timeout-bounded graceful shutdown).
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg.Logging, debug)

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("config", configPath).
		Str("llm_provider", cfg.LLM.DefaultProvider).
		Msg("starting reflexagentd")

	provider, err := buildProvider(cfg.LLM, cfg.Retry)
	if err != nil {
		return fmt.Errorf("failed to build LLM provider: %w", err)
	}

	repoCacheDir := cfg.Reflexion.RepoCacheDir
	if repoCacheDir == "" {
		repoCacheDir = filepath.Join(os.TempDir(), "reflexagentd", "reflections")
	}
	reflectionCache, err := cache.New(cache.Config{Dir: repoCacheDir})
	if err != nil {
		return fmt.Errorf("failed to open reflection cache: %w", err)
	}

	reflector := &providerReflector{provider: provider}
	manager := reflection.NewManager(reflector, cfg.Reflexion, reflectionCache)

	loop := agent.NewLoop(provider, agent.NewToolRegistry(), manager, prompt.New())
	loop.ReflectionConfig = cfg.Reflexion

	dispatcher := &loopDispatcher{loop: loop}

	srv := webhook.NewServer(webhook.Config{
		Dispatcher:   dispatcher,
		Service:      "reflexagentd",
		Architecture: "single-task-loop",
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Mux(),
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	log.Info().Str("addr", httpServer.Addr).Msg("reflexagentd listening")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info().Msg("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info().Msg("reflexagentd stopped gracefully")
	return nil
}

// setupLogging configures the global zerolog logger per cfg: "json" (the
// default, for production log aggregation), "simple"/"detailed" render
// via zerolog.ConsoleWriter instead, matching the three formats
// internal/config.validateConfig accepts.
func setupLogging(cfg config.LoggingConfig, debug bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "simple":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}})
	case "detailed":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	default: // json
		log.Logger = log.Output(os.Stderr).With().Timestamp().Logger()
	}
}

// buildProvider constructs the configured LLM provider dialect (spec.md
// §4.5), wiring the retry knobs C10/internal/retry already parsed from
// the environment into the Anthropic and Google providers' own
// MaxRetries/RetryDelay fields (MaxAttempts counts the first try, so
// MaxRetries is one less). The Ollama provider has no retry fields and
// receives none.
func buildProvider(llmCfg config.LLMConfig, retryCfg retry.Config) (agent.LLMProvider, error) {
	name := strings.ToLower(strings.TrimSpace(llmCfg.DefaultProvider))
	entry := llmCfg.Providers[name]
	maxRetries := retryCfg.MaxAttempts - 1

	switch name {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       entry.APIKey,
			BaseURL:      entry.BaseURL,
			DefaultModel: entry.DefaultModel,
			MaxRetries:   maxRetries,
			RetryDelay:   retryCfg.InitialDelay,
		})
	case "google":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:     entry.APIKey,
			MaxRetries: maxRetries,
			RetryDelay: retryCfg.InitialDelay,
		})
	case "ollama":
		return providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL:      entry.BaseURL,
			DefaultModel: entry.DefaultModel,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", llmCfg.DefaultProvider)
	}
}
