// Kestrel - Forensic fraud sweeps for transaction batches.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/sweep"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"artifact", cfg.Scoring.ArtifactPath,
		"threshold", cfg.Scoring.Threshold,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load model artifact
	forest, err := model.Load(cfg.Scoring.ArtifactPath)
	if err != nil {
		slog.Error("failed to load model artifact", "path", cfg.Scoring.ArtifactPath, "error", err)
		os.Exit(1)
	}
	slog.Info("model artifact loaded",
		"path", cfg.Scoring.ArtifactPath,
		"features", forest.NumFeatures(),
		"trees", len(forest.Trees),
	)

	// Build the explain strategy: CEL expression when configured, the
	// boundary heuristic otherwise.
	var explainer report.ExplainStrategy = report.BoundaryExplainer{}
	if expr := cfg.Scoring.ExplainExpr; expr != "" {
		celExplainer, err := report.NewCELExplainer(expr)
		if err != nil {
			slog.Error("invalid explain expression", "error", err)
			os.Exit(1)
		}
		explainer = celExplainer
		slog.Info("CEL explainer compiled")
	}

	// Initialize sweep service
	svc, err := sweep.NewService(forest, report.NewFormatter(explainer), cfg.Scoring.Threshold)
	if err != nil {
		slog.Error("failed to initialize sweep service", "error", err)
		os.Exit(1)
	}
	slog.Info("sweep service initialized", "threshold", cfg.Scoring.Threshold)

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cfg.Scoring.AlertScore)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs:  tenantIDs,
			AlertScore: cfg.Scoring.AlertScore,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, cfg.Scoring, svc, repo, cacheImpl, busImpl, forest, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// applyEnvOverrides adjusts the scoring pipeline from the environment so
// operators can point at a different artifact or tighten the filter without
// a config rebuild.
func applyEnvOverrides(cfg *domain.Config) {
	if path := os.Getenv("KESTREL_ARTIFACT"); path != "" {
		cfg.Scoring.ArtifactPath = path
	}
	if raw := os.Getenv("KESTREL_THRESHOLD"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Scoring.Threshold = n
		} else {
			slog.Warn("ignoring invalid KESTREL_THRESHOLD", "value", raw)
		}
	}
	if expr := os.Getenv("KESTREL_EXPLAIN_EXPR"); expr != "" {
		cfg.Scoring.ExplainExpr = expr
	}
	if raw := os.Getenv("KESTREL_PORT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Server.Port = n
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║       Forensic Fraud Sweep Engine         ║")
	fmt.Println("  ║      Hover. Spot. Strike.                 ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Model:    %s\n", cfg.Scoring.ArtifactPath)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /sweep         - Score an uploaded CSV batch")
	fmt.Println("    GET  /sweeps        - List recent sweeps")
	fmt.Println("    GET  /sweeps/{id}   - Get sweep by ID")
	fmt.Println("    GET  /alerts        - List persisted alerts")
	fmt.Println("    GET  /model         - Loaded model metadata")
	fmt.Println("    GET  /health        - Health check")
	fmt.Println()
}
