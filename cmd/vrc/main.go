// Command vrc runs a visual-regression comparison between two deployments of
// the same website.
//
// Usage:
//
//	vrc -config vrc.yaml                 # compare all configured pages, write summary
//	vrc -config vrc.yaml -serve :8090    # additionally serve artifacts over HTTP
//	vrc -config vrc.yaml -mcp            # expose the comparison as MCP tools on stdio
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

	"github.com/hazyhaar/vrc"
	"github.com/hazyhaar/vrc/history"
	"github.com/hazyhaar/vrc/internal/browser"
	"github.com/hazyhaar/vrc/internal/capture"
	"github.com/hazyhaar/vrc/report"
)

func main() {
	configPath := flag.String("config", "", "path to vrc.yaml config file")
	serveAddr := flag.String("serve", "", "serve artifacts over HTTP on this address after the run")
	mcpMode := flag.Bool("mcp", false, "run as an MCP server on stdio instead of a one-shot run")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vrc -config <file> [-serve <addr>] [-mcp]")
		os.Exit(2)
	}

	if err := run(ctx, logger, *configPath, *serveAddr, *mcpMode); err != nil {
		if errors.Is(err, errRunDiverged) {
			os.Exit(1)
		}
		logger.Error("vrc: fatal", "error", err)
		os.Exit(1)
	}
}

// errRunDiverged signals a completed run with failed or errored pages, so CI
// exits non-zero without a second error log.
var errRunDiverged = errors.New("run diverged")

func run(ctx context.Context, logger *slog.Logger, configPath, serveAddr string, mcpMode bool) error {
	cfg, err := vrc.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headful:   cfg.Browser.Headful,
		Logger:    logger,
	})
	if _, err := mgr.Start(); err != nil {
		return err
	}
	defer mgr.Close()

	staging, err := envCapturer(mgr, cfg, cfg.Environments.Staging, logger)
	if err != nil {
		return err
	}
	prod, err := envCapturer(mgr, cfg, cfg.Environments.Prod, logger)
	if err != nil {
		return err
	}

	runner := vrc.NewRunner(cfg, staging, prod, logger)

	if mcpMode {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "vrc",
			Version: "1.0.0",
		}, nil)
		runner.RegisterMCP(srv)
		logger.Info("vrc: MCP server starting on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	startedAt := time.Now()
	sum, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if err := report.WriteSummary(cfg.Output.SummaryPath, sum); err != nil {
		return err
	}
	logger.Info("vrc: summary written", "path", cfg.Output.SummaryPath)

	if cfg.History.Path != "" {
		recordHistory(ctx, logger, cfg, startedAt, sum)
	}

	if serveAddr != "" {
		if err := serve(ctx, logger, serveAddr, cfg); err != nil {
			return err
		}
	}

	if sum.Failed > 0 || sum.Errored > 0 {
		return errRunDiverged
	}
	return nil
}

func envCapturer(mgr *browser.Manager, cfg *vrc.Config, env vrc.EnvironmentConfig, logger *slog.Logger) (*capture.Capturer, error) {
	tab, err := browser.OpenTab(mgr, browser.TabConfig{
		NavTimeout:       cfg.Capture.NavTimeout,
		ImageWaitTimeout: cfg.Capture.ImageWaitTimeout,
		ScrollStep:       cfg.Capture.ScrollStep,
		BasicAuthHeader:  browser.BasicAuth(env.BasicAuthUser, env.BasicAuthPass),
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	return capture.New(tab, capture.Config{
		Attempts:       cfg.Capture.Attempts,
		SettleDelay:    cfg.Capture.SettleDelay,
		AttemptTimeout: cfg.Capture.AttemptTimeout,
		StrictImages:   cfg.Capture.StrictImages,
		Logger:         logger,
	}), nil
}

// recordHistory stores the run in SQLite. Best-effort: a failing history
// store never fails the run.
func recordHistory(ctx context.Context, logger *slog.Logger, cfg *vrc.Config, startedAt time.Time, sum *vrc.Summary) {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logger.Warn("vrc: history open failed", "error", err)
		return
	}
	defer store.Close()

	if err := store.RecordRun(ctx, startedAt, sum); err != nil {
		logger.Warn("vrc: history record failed", "error", err)
		return
	}
	if err := store.Cleanup(ctx, cfg.History.RetentionDays); err != nil {
		logger.Warn("vrc: history cleanup failed", "error", err)
	}
}

func serve(ctx context.Context, logger *slog.Logger, addr string, cfg *vrc.Config) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: report.Handler(cfg.Output.SummaryPath, cfg.Output),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("vrc: serving artifacts", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
