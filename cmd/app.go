package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/discovery"
	"github.com/agentdeck/agentdeck/internal/agents/impl"
	"github.com/agentdeck/agentdeck/internal/agents/tools"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/logger"
	"github.com/agentdeck/agentdeck/internal/memory"
	"github.com/agentdeck/agentdeck/internal/telemetry"
)

// modelFactory overrides the chat model factory. Tests set it to a fake.
var modelFactory impl.ModelFactory

// app holds what every command shares: settings, logger, store, the agent
// constructor and telemetry.
type app struct {
	settings  config.Settings
	log       *slog.Logger
	store     memory.Store
	builder   *impl.Constructor
	telemetry telemetry.Client

	closers []func() error
}

// newApp wires the collaborators for one command invocation. When validate
// is set, missing credentials fail with a *config.ConfigError.
func newApp(validate bool) (*app, error) {
	s, err := loadSettings(validate)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logger.New(logger.Config{Level: s.Log.Level, Format: s.Log.Format, Output: s.Log.Output})
	if err != nil {
		return nil, &ExitError{Code: 1, Err: err}
	}
	slog.SetDefault(log)
	logger.SetBasePath(s.DataDir)
	logger.SetVersion(version)

	a := &app{settings: s, log: log, closers: []func() error{closeLog}}

	llmCfg, err := config.LoadLLMConfig(s)
	if err != nil {
		_ = a.Close()
		return nil, &ExitError{Code: 1, Err: err}
	}

	// Memory is optional: agents that need it are skipped without a store.
	if store, err := memory.NewSQLiteStore(s.MemoryDBPath()); err != nil {
		log.Warn("memory store unavailable, memory and knowledge disabled", "path", s.MemoryDBPath(), "error", err)
	} else {
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	a.telemetry = newTelemetry(s, log)
	a.closers = append(a.closers, a.telemetry.Close)

	deps := impl.Deps{
		LLM:          llmCfg,
		Tools:        tools.Deps{FirecrawlAPIKey: s.Credentials.Firecrawl},
		Logger:       log,
		ModelFactory: modelFactory,
	}
	if a.store != nil {
		deps.Store = a.store
	}
	a.builder = impl.NewConstructor(deps)
	return a, nil
}

func newTelemetry(s config.Settings, log *slog.Logger) telemetry.Client {
	if !s.Telemetry.Enabled {
		return telemetry.NoopClient{}
	}
	tcfg, err := telemetry.Load(s.DataDir, true)
	if err != nil {
		log.Debug("telemetry disabled", "error", err)
		return telemetry.NoopClient{}
	}
	client, err := telemetry.New(telemetry.ClientConfig{
		APIKey:   s.Telemetry.APIKey,
		Version:  version,
		Config:   tcfg,
		Endpoint: s.Telemetry.Endpoint,
	})
	if err != nil {
		log.Debug("telemetry disabled", "error", err)
		return telemetry.NoopClient{}
	}
	return client
}

// registry builds the console registry: builtins first, then the packages
// discovered under the agents directory.
func (a *app) registry(ctx context.Context) (*core.Registry, discovery.Report) {
	b := core.NewBuilder()
	builtins := core.AddBuiltins(ctx, b, a.builder, a.log)
	report := discovery.Into(ctx, b, discovery.Options{
		Root:    a.settings.AgentsDir,
		Builder: a.builder,
		Logger:  a.log,
	})
	a.log.Debug("registry built", "builtins", builtins, "discovered", len(report.Added), "skipped", len(report.Skips))
	return b.Build(), report
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// writableDir reports whether dir exists or can be created.
func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("write to %s: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
