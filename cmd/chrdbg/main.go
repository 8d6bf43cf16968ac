// Command chrdbg attaches a DevTools debugging session to one Chrome page
// and exposes it to MCP clients, with a read-only HTTP surface alongside
// for humans and dashboards.
//
// Usage:
//
//	chrdbg -url https://shop.example/checkout
//	chrdbg -config chrdbg.yaml -log-level debug
//
// With the default stdio transport the MCP client owns stdin/stdout, so
// all logging goes to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/chrdbg/browser"
	"github.com/hazyhaar/chrdbg/capture"
	"github.com/hazyhaar/chrdbg/dbopen"
	"github.com/hazyhaar/chrdbg/debugger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	targetURL := flag.String("url", "", "target page URL (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	level := slog.LevelInfo
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := defaultConfig()
	if *configPath != "" {
		c, err := loadConfig(*configPath)
		if err != nil {
			logger.Error("load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = c
	}
	cfg.applyEnv()
	if *targetURL != "" {
		cfg.Target = *targetURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("chrdbg failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *Config) error {
	if cfg.Target == "" {
		return fmt.Errorf("no target url: set target in the config file, -url, or TARGET_URL")
	}

	var journal *capture.Journal
	if cfg.Capture.Path != "" {
		db, err := dbopen.Open(cfg.Capture.Path, dbopen.WithMkdirAll())
		if err != nil {
			return fmt.Errorf("open capture db: %w", err)
		}
		defer db.Close()
		journal = capture.NewJournal(db)
		if err := journal.Init(); err != nil {
			return fmt.Errorf("capture schema: %w", err)
		}
		if cfg.Capture.RetainDays > 0 {
			rc := capture.RetentionConfig{
				CapturesDays: cfg.Capture.RetainDays,
				SessionsDays: cfg.Capture.RetainDays,
			}
			if err := capture.Cleanup(ctx, db, rc); err != nil {
				logger.Warn("capture cleanup", "error", err)
			}
		}
	}

	mgr := browser.NewManager(browser.Config{
		Remote:          cfg.Browser.Remote,
		Headless:        cfg.headless(),
		Stealth:         cfg.Browser.Stealth,
		UserDataDir:     cfg.Browser.UserDataDir,
		RecycleInterval: cfg.Browser.RecycleInterval,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		Logger:          logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	page, err := mgr.Page(ctx, cfg.Target)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Target, err)
	}

	dcfg := &debugger.Config{
		PauseOnExceptions:   cfg.Debugger.PauseOnExceptions,
		AsyncCallStackDepth: cfg.Debugger.AsyncStackDepth,
		DefaultWaitTimeout:  cfg.Debugger.WaitTimeout,
		MaxScripts:          cfg.Debugger.MaxScripts,
		SearchMaxMatches:    cfg.Debugger.SearchMaxMatches,
		SearchContextLines:  cfg.Debugger.SearchContextLines,
	}
	var opts []debugger.Option
	if journal != nil {
		opts = append(opts, debugger.WithRecorder(journal))
	}
	m, err := debugger.New(page, dcfg, logger, opts...)
	if err != nil {
		return err
	}

	// Subscribe before Enable so no script announcement is missed.
	m.Listen(ctx, page)
	if err := m.Enable(ctx); err != nil {
		return fmt.Errorf("enable debugger: %w", err)
	}
	if journal != nil {
		journal.StartSession(ctx, m.SessionID(), cfg.Target)
	}
	logger.Info("attached", "session", m.SessionID(), "target", cfg.Target)

	// A recycled browser invalidates every breakpoint, pause and object
	// handle, so the session is torn down cleanly first.
	mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.Detach(dctx); err != nil {
				logger.Warn("detach before recycle", "error", err)
			}
		},
	})

	srv := mcp.NewServer(&mcp.Implementation{Name: "chrdbg", Version: "1.0.0"}, nil)
	m.RegisterMCP(srv)

	var mcpHandler http.Handler
	if cfg.MCPTransport == "http" {
		mcpHandler = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(m, journal, cfg.Target, mcpHandler),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
		}
	}()

	var serveErr error
	if cfg.MCPTransport == "stdio" {
		serveErr = serveStdio(ctx, srv, logger)
	} else {
		<-ctx.Done()
	}

	// Teardown releases the target before the transports so a reattaching
	// client never sees half-cleared breakpoints.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Detach(shutdownCtx); err != nil {
		logger.Warn("detach", "error", err)
	}
	if journal != nil {
		journal.EndSession(shutdownCtx, m.SessionID())
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	logger.Info("stopped", "session", m.SessionID())
	return serveErr
}

// serveStdio runs the MCP server on stdin/stdout until the client hangs
// up or the context is cancelled.
func serveStdio(ctx context.Context, srv *mcp.Server, logger *slog.Logger) error {
	transport := &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout}
	ss, err := srv.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp connect: %w", err)
	}
	logger.Info("mcp serving on stdio")

	done := make(chan error, 1)
	go func() { done <- ss.Wait() }()
	select {
	case <-ctx.Done():
		_ = ss.Close()
		<-done
		return nil
	case err := <-done:
		if err != nil {
			logger.Debug("mcp session ended", "error", err)
		}
		return nil
	}
}
