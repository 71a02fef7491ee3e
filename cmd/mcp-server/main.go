// cmd/mcp-server/main.go — Standalone HTTP MCP server for goderiv
//
// Exposes expression evaluation as an HTTP endpoint for AI agent frameworks.
//
// Usage:
//
//	go run ./cmd/mcp-server -port 8080
//	go run ./cmd/mcp-server -config server.yaml
//
// Tool call endpoint: POST /tool
// Schema endpoint:    GET  /schema
// Health endpoint:    GET  /health
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/njchilds90/goderiv/internal/config"
	"github.com/njchilds90/goderiv/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or JSON config file")
	port := flag.Int("port", 0, "Port to listen on (overrides the config addr)")
	flag.Parse()

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, port int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if port != 0 {
		cfg.Addr = fmt.Sprintf(":%d", port)
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel)

	// Telemetry goes to stdout, logs to stderr.
	tel, err := observability.NewProviders(os.Stdout, cfg.Metrics, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	tel.Install()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("telemetry shutdown", "error", err)
		}
	}()

	s := newServer(cfg, logger, tel)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	observability.LogServerStart(logger, cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		return err
	}
	<-drained
	return nil
}
