// Package app wires all dbbridge subsystems into a running application.
//
// The App struct owns the full lifecycle: New constructs and connects both
// Store Handles and builds the tool catalog from whichever connected, Run
// serves MCP (and the optional telemetry listener) until the peer hangs up
// or ctx is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject the transport and telemetry via functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/dbbridge/internal/bridge"
	"github.com/MrWong99/dbbridge/internal/config"
	"github.com/MrWong99/dbbridge/internal/health"
	"github.com/MrWong99/dbbridge/internal/mcpserver"
	"github.com/MrWong99/dbbridge/internal/observe"
	"github.com/MrWong99/dbbridge/internal/store/postgres"
	"github.com/MrWong99/dbbridge/internal/store/redis"
	"github.com/MrWong99/dbbridge/internal/tool"
	"github.com/MrWong99/dbbridge/internal/tool/pgtool"
	"github.com/MrWong99/dbbridge/internal/tool/redistool"
)

// handle is the lifecycle surface shared by both Store Handles.
type handle interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Ping(ctx context.Context) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	version string

	// Injected or defaulted in New.
	transport mcpsdk.Transport
	provider  *observe.Provider
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	pg       *postgres.Store
	rd       *redis.Store
	bridge   *bridge.Bridge
	server   *mcpserver.Server
	listener net.Listener
	httpSrv  *http.Server

	// closers are called in order during Shutdown.
	closers []func(ctx context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithTransport replaces the stdio transport, typically with one half of
// [mcpsdk.NewInMemoryTransports].
func WithTransport(t mcpsdk.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithProvider hands the telemetry provider to the App. Its metrics handler
// backs /metrics and Shutdown flushes it.
func WithProvider(p *observe.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. Both enabled stores are connected
// concurrently; a store that fails to connect is logged and its tools are
// left out of the catalog. New only fails when the HTTP listener cannot bind.
func New(ctx context.Context, cfg *config.Config, version string, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: version}
	for _, o := range opts {
		o(a)
	}
	if a.transport == nil {
		a.transport = &mcpsdk.StdioTransport{}
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Store handles ────────────────────────────────────────────────
	if cfg.Postgres.Enabled {
		a.pg = postgres.New(cfg.Postgres.StoreConfig())
		a.closers = append(a.closers, disconnect(a.pg))
	}
	if cfg.Redis.Enabled {
		a.rd = redis.New(cfg.Redis.StoreConfig())
		a.closers = append(a.closers, disconnect(a.rd))
	}
	a.connectStores(ctx)

	// ── 2. Catalog + bridge ─────────────────────────────────────────────
	cat, err := tool.NewCatalog(a.tools()...)
	if err != nil {
		return nil, fmt.Errorf("app: build catalog: %w", err)
	}
	if cat.Len() == 0 {
		slog.Warn("no store available; serving an empty tool catalog")
	}
	a.bridge = bridge.New(cat, bridge.WithMetrics(a.metrics))
	a.server = mcpserver.New(a.bridge, version)

	// ── 3. Telemetry listener ───────────────────────────────────────────
	if err := a.initHTTP(); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("app: %w", err)
	}

	if a.provider != nil {
		a.closers = append(a.closers, a.provider.Shutdown)
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// connectStores connects every configured handle in parallel. Failures are
// independent: one backend being down never blocks the other.
func (a *App) connectStores(ctx context.Context) {
	var g errgroup.Group
	if a.pg != nil {
		g.Go(func() error {
			a.connect(ctx, "postgres", a.cfg.Postgres.StoreConfig().Addr(), a.pg)
			return nil
		})
	}
	if a.rd != nil {
		g.Go(func() error {
			a.connect(ctx, "redis", a.cfg.Redis.StoreConfig().Addr(), a.rd)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *App) connect(ctx context.Context, backend, addr string, h handle) {
	start := time.Now()
	if err := h.Connect(ctx); err != nil {
		a.metrics.RecordStoreConnect(ctx, backend, observe.StatusError)
		slog.Warn("store connection failed; tools will not be available",
			"backend", backend, "addr", addr, "err", err)
		return
	}
	a.metrics.RecordStoreConnect(ctx, backend, observe.StatusOK)
	slog.Info("store connected", "backend", backend, "addr", addr, "took", time.Since(start))
}

// tools returns the tool sets of connected handles only.
func (a *App) tools() []tool.Tool {
	var tools []tool.Tool
	if a.pg != nil && a.pg.IsConnected() {
		tools = append(tools, pgtool.NewTools(a.pg)...)
	}
	if a.rd != nil && a.rd.IsConnected() {
		tools = append(tools, redistool.NewTools(a.rd)...)
	}
	return tools
}

// initHTTP binds the telemetry listener when server.http_addr is set.
func (a *App) initHTTP() error {
	addr := a.cfg.Server.HTTPAddr
	if addr == "" {
		return nil
	}

	// Readiness covers the same handles as the catalog. A store that never
	// connected has no tools and cannot make the server unready.
	var checkers []health.Checker
	if a.pg != nil && a.pg.IsConnected() {
		checkers = append(checkers, health.StoreChecker("postgres", a.pg))
	}
	if a.rd != nil && a.rd.IsConnected() {
		checkers = append(checkers, health.StoreChecker("redis", a.rd))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	if a.provider != nil {
		mux.Handle("GET /metrics", a.provider.MetricsHandler())
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	a.listener = ln
	a.httpSrv = &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.closers = append([]func(context.Context) error{a.closeHTTP}, a.closers...)
	slog.Info("telemetry listener bound", "addr", ln.Addr().String())
	return nil
}

// closeHTTP stops the server and releases the listener, which Serve only
// tracks once Run has started.
func (a *App) closeHTTP(ctx context.Context) error {
	err := a.httpSrv.Shutdown(ctx)
	if cerr := a.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	return err
}

func disconnect(h handle) func(context.Context) error {
	return func(context.Context) error { return h.Disconnect() }
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// ToolNames lists the advertised tools in registration order.
func (a *App) ToolNames() []string { return a.bridge.Catalog().Names() }

// HTTPAddr returns the bound telemetry address, or "" when disabled.
func (a *App) HTTPAddr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves MCP on the configured transport and blocks until ctx is
// cancelled or the peer disconnects. Both are a clean stop and return nil.
// The telemetry listener, if any, stops with it.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.httpSrv != nil {
		g.Go(func() error {
			if err := a.httpSrv.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: telemetry listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		slog.Info("serving mcp", "tools", a.bridge.Catalog().Len(), "version", a.version)
		return a.server.Run(runCtx, a.transport)
	})

	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the listener, disconnects both handles and flushes
// telemetry. It respects the context deadline: once ctx expires the
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, err)
				return
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
				errs = append(errs, err)
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
