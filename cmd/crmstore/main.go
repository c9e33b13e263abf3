// Package main implements the entry point for the crmstore service: the
// CRM data layer served over NATS JetStream KV, with health and metrics
// endpoints for operators.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/fulqrun/crmstore/config"
	"github.com/fulqrun/crmstore/crm"
	"github.com/fulqrun/crmstore/kvclient"
	"github.com/fulqrun/crmstore/metric"
)

// Build information constants.
const (
	Version = "0.1.0"
	appName = "crmstore"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)
	slog.Info("starting crmstore", "version", Version, "config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.NATSURL != "" {
		cfg.NATS.URL = cliCfg.NATSURL
	}
	if cliCfg.HTTPAddr != "" {
		cfg.HTTP.Addr = cliCfg.HTTPAddr
	}
	if cliCfg.Validate {
		slog.Info("configuration is valid")
		return nil
	}

	ctx := context.Background()

	registry := metric.NewRegistry()

	client, bucket, err := connectSubstrate(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Warn("NATS close failed", "error", err)
		}
	}()

	db, err := crm.Open(ctx, crm.Options{
		KV:             bucket,
		Logger:         logger,
		Metrics:        registry.Metrics,
		SeedSampleData: cfg.Store.SeedSampleData,
		IndexCacheSize: cfg.Store.IndexCacheSize,
		Connected:      client.IsHealthy,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	slog.Info("database ready", "bucket", cfg.NATS.Bucket)

	server := newHTTPServer(cfg.HTTP.Addr, db, registry)
	return runWithSignalHandling(ctx, server, cliCfg.ShutdownTimeout)
}

func connectSubstrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*kvclient.Client, *kvclient.Bucket, error) {
	opts := []kvclient.ClientOption{
		kvclient.WithLogger(logger),
		kvclient.WithClientName(appName),
		kvclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, kvclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, kvclient.WithUserInfo(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, kvclient.WithToken(cfg.NATS.Token))
	}

	client, err := kvclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	bucket, err := client.EnsureBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.NATS.Bucket,
		Description: "crmstore flat record and index namespace",
		History:     1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ensure KV bucket: %w", err)
	}
	return client, bucket, nil
}

func newHTTPServer(addr string, db *crm.Database, registry *metric.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := db.HealthStatus(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.IsCritical() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Warn("health response encoding failed", "error", err)
		}
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runWithSignalHandling(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}
