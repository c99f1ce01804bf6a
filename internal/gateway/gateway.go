// Package gateway exposes the assistant over HTTP and WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/health"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/security"
	"github.com/flemzord/policychat/internal/telemetry"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It serves the session and turn API,
// a WebSocket chat endpoint, health, stats and Prometheus metrics. It is a
// leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	limiter   *security.RateLimiter
	audit     *security.AuditLogger
	auditFile *os.File
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	assistant *router.Router
	checker   *health.Checker
	stats     *health.StatsSource
	metrics   *telemetry.Metrics

	// baseCtx is cancelled on Stop so open WebSocket conversations end.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	conns      sync.WaitGroup
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.limiter = security.NewRateLimiter(g.config.RateLimit)

	if g.config.AuditLog != "" {
		path := g.config.AuditLog
		if !filepath.IsAbs(path) {
			path = filepath.Join(ctx.DataDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("gateway: audit log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("gateway: open audit log: %w", err)
		}
		g.auditFile = f
		g.audit = security.NewAuditLogger(security.AuditLoggerConfig{Writer: f, Redactor: security.NewRedactor()})
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if g.config.RateLimit.Limit < 0 {
		return errors.New("gateway: rate_limit.limit must not be negative")
	}
	return nil
}

// Start implements core.Starter. It resolves the assistant from the
// service registry and starts the HTTP server.
func (g *Gateway) Start() error {
	assistant, ok := core.Service[*router.Router](g.appCtx, router.ServiceName)
	if !ok {
		return errors.New("gateway: assistant router is not registered")
	}
	g.assistant = assistant

	// Optional services: graceful degradation if missing.
	g.checker, _ = core.Service[*health.Checker](g.appCtx, health.ServiceName)
	g.stats, _ = core.Service[*health.StatsSource](g.appCtx, health.StatsServiceName)
	g.metrics, _ = core.Service[*telemetry.Metrics](g.appCtx, telemetry.ServiceName)

	g.baseCtx, g.cancelBase = context.WithCancel(context.Background())
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	defer g.closeAudit()
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	err := g.server.Shutdown(shutdownCtx)

	// Hijacked WebSocket connections are not tracked by Shutdown.
	g.cancelBase()
	done := make(chan struct{})
	go func() {
		g.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
	}
	return err
}

func (g *Gateway) closeAudit() {
	if g.auditFile != nil {
		_ = g.auditFile.Close()
		g.auditFile = nil
	}
}
