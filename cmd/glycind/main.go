package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glycin-project/glycin"
	"github.com/glycin-project/glycin/internal/config"
	"github.com/glycin-project/glycin/internal/diag"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve", "start":
		serve()
	case "inspect":
		inspect()
	case "version":
		fmt.Printf("glycind v%s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serve() {
	cfgPath := "glycind.yaml"
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}

	logger, startupCloser := setupLogger("info", "json", "stdout")
	if startupCloser != nil {
		defer startupCloser.Close()
	}
	logger.Info("glycind starting", "version", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if dir := os.Getenv("GLYCIN_DATA_DIR"); dir != "" {
		cfg.DataDirs = []string{dir}
	}

	if startupCloser != nil {
		_ = startupCloser.Close()
		startupCloser = nil
	}
	logger, logCloser := setupLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if logCloser != nil {
		defer logCloser.Close()
	}

	rt, err := glycin.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start runtime", "error", err)
		os.Exit(1)
	}

	var diagServer *http.Server
	if cfg.Diagnostics.Enabled {
		mux := http.NewServeMux()
		diag.NewHandler(rt.Pool(), cfg.Diagnostics.MetricsPath).Register(mux)
		diagServer = &http.Server{Addr: cfg.Diagnostics.Address, Handler: mux}
		go func() {
			logger.Info("diagnostics listening", "address", cfg.Diagnostics.Address)
			if err := diagServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("diagnostics server error", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			logger.Info("SIGHUP received, reloading codec registry")
			if err := rt.Reload(); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}()

	logger.Info("glycind ready")

	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if diagServer != nil {
		if err := diagServer.Shutdown(ctx); err != nil {
			logger.Error("diagnostics shutdown error", "error", err)
		}
	}
	if err := rt.Close(); err != nil {
		logger.Error("runtime shutdown error", "error", err)
	}

	logger.Info("glycind stopped")
}

// inspect loads the image at the given path just far enough to print
// its ImageDetails as JSON, a quick end-to-end smoke test of the
// MIME-detect -> pool-acquire -> sandbox-spawn -> init handshake wired
// together by the root glycin package.
func inspect() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: glycind inspect [config] <path>")
		os.Exit(1)
	}
	cfgPath := "glycind.yaml"
	path := os.Args[2]
	if len(os.Args) > 3 {
		cfgPath, path = os.Args[2], os.Args[3]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	rt, err := glycin.New(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting runtime: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	img, err := glycin.NewLoaderFromFile(rt, path).Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", path, err)
		os.Exit(1)
	}
	defer img.Done(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(img.Details())
}

func setupLogger(level, format, output string) (*slog.Logger, io.Closer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	writer, closer := resolveLogOutput(output)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer
}

func resolveLogOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout, nil
		}
		return f, f
	}
}

func printUsage() {
	fmt.Println(`glycind - Sandboxed image decode/edit runtime

Usage:
  glycind <command> [options]

Commands:
  serve [config]          Start the diagnostics surface and hold the process pool warm (default config: glycind.yaml)
  start [config]           Alias for serve
  inspect [config] <file>  Load a single image and print its metadata as JSON
  version                  Show version
  help                     Show this help

Signals:
  SIGHUP             Reload the codec registry from disk
  SIGINT/SIGTERM     Graceful shutdown

Examples:
  glycind serve
  glycind serve /etc/glycin/glycind.yaml
  glycind inspect photo.jpg
  kill -HUP $(pidof glycind)   # Reload codec registry`)
}
