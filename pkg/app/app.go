// Package app assembles the assistant from a configuration file and runs
// it. It is the shared entry point of every policychat command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/policychat/internal/config"
	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/health"
	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/security"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/internal/telemetry"
)

// Options configures Open.
type Options struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string

	// DataDir and LogLevel override the configuration file when set.
	DataDir  string
	LogLevel string

	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer

	// Headless skips gateway modules. Used by commands that talk to the
	// assistant in-process.
	Headless bool
}

// Runtime is a fully wired assistant. Modules are loaded but not started.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Redactor *security.Redactor

	App    *core.App
	AppCtx *core.AppContext

	Store     store.Store
	Retriever retrieval.Retriever
	Chain     *provider.Chain
	Router    *router.Router
	Metrics   *telemetry.Metrics
	Checker   *health.Checker
	Stats     *health.StatsSource

	shutdownTracing func(context.Context) error
}

// Open loads the configuration, builds the logger and every module, and
// wires the assistant between them. Call Start to begin serving and Stop
// (or Close when Start was never called) to release resources.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	// Variables from .env files next to the config are visible to ${VAR}
	// expansion. The real environment wins.
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(cfgPath), ".env")); err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)

	redactor := security.NewRedactor()
	for _, s := range cfg.Secrets {
		redactor.AddLiteral(s)
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := security.NewLogger(out, level, redactor)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("app: create data dir: %w", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing, opts.Version)
	if err != nil {
		return nil, err
	}

	appCtx := core.NewAppContext(logger, cfg.DataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorServiceName, redactor)
	appCtx.RegisterService("config.path", cfgPath)

	rt := &Runtime{
		Config:          cfg,
		Logger:          logger,
		Redactor:        redactor,
		App:             core.NewApp(appCtx),
		AppCtx:          appCtx,
		shutdownTracing: shutdownTracing,
	}

	plan := config.Resolve(cfg)
	if err := rt.App.LoadModules(plan.Backends); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.wire(); err != nil {
		rt.Close()
		return nil, err
	}
	// Gateways load last so they stop first and drain in-flight turns
	// while the backends are still up.
	if !opts.Headless {
		if err := rt.App.LoadModules(plan.Gateways); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

// Start starts every module.
func (rt *Runtime) Start() error {
	return rt.App.Start()
}

// Stop stops every started module and flushes traces.
func (rt *Runtime) Stop() {
	rt.App.Stop()
	rt.flushTraces()
}

// Close releases a Runtime that was never started.
func (rt *Runtime) Close() {
	rt.App.Close()
	rt.flushTraces()
}

func (rt *Runtime) flushTraces() {
	if rt.shutdownTracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
	defer cancel()
	if err := rt.shutdownTracing(ctx); err != nil {
		rt.Logger.Warn("trace flush failed", "error", err)
	}
	rt.shutdownTracing = nil
}

// Run opens the runtime, starts it and blocks until SIGINT or SIGTERM.
func Run(ctx context.Context, opts Options) error {
	rt, err := Open(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.flushTraces()
	return rt.App.Run()
}

// ModuleIDs returns the configured module IDs in load order.
func ModuleIDs(cfg *config.Config) []string {
	return config.Resolve(cfg).All()
}

var errNoConfig = errors.New("app: no configuration file found")
