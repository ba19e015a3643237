package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/vk/weave/internal/action"
	"github.com/vk/weave/internal/ctxlog"
	"github.com/vk/weave/internal/diag"
	"github.com/vk/weave/internal/limits"
	"github.com/vk/weave/internal/registry"
)

// App encapsulates one runtime: its logger, capability registry, limits,
// executor and the soft failures reported while it runs.
type App struct {
	ctx       context.Context
	logger    *slog.Logger
	config    *Config
	registry  *registry.Registry
	limits    *limits.Table
	errors    *diag.Collector
	sink      diag.Sink
	executor  *action.Executor
	providers *action.Providers
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry
// and limits. Without modules the built-in set is registered.
func NewApp(logW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules()
	}
	reg.Use(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules))

	table := limits.New()
	categories := make([]string, 0, len(cfg.Limits))
	for category := range cfg.Limits {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		table.Override(category, cfg.Limits[category])
	}
	logger.Debug("Limits configured.", "effective", table.Snapshot())

	collector := diag.NewCollector()
	sink := diag.Tee(diag.LogSink{Level: slog.LevelWarn}, collector)

	a := &App{
		ctx:       ctx,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		limits:    table,
		errors:    collector,
		sink:      sink,
		executor:  action.NewExecutor(reg, table, sink),
		providers: action.NewProviders(),
	}

	if cfg.PackagesPath != "" {
		if err := a.LoadPackages(cfg.PackagesPath); err != nil {
			return nil, fmt.Errorf("failed to load packages: %w", err)
		}
	}
	return a, nil
}

// Context returns the application context carrying its logger.
func (a *App) Context() context.Context {
	return a.ctx
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Limits returns the application's effective ceilings.
func (a *App) Limits() *limits.Table {
	return a.limits
}

// Errors returns the soft failures reported so far.
func (a *App) Errors() []error {
	return a.errors.Errors()
}

// ResetErrors forgets the soft failures reported so far.
func (a *App) ResetErrors() {
	a.errors.Reset()
}
