package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/grammarkit/mining-service/internal/config"
	"github.com/grammarkit/mining-service/internal/repository"
	"github.com/grammarkit/mining-service/internal/services"
	"github.com/grammarkit/mining-service/internal/store"
	"github.com/grammarkit/mining-service/pkg/server"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize database
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Log startup event
	db.Event("info", "startup", "Server starting", map[string]interface{}{
		"service_name": cfg.ServiceName,
		"http_addr":    cfg.HTTPAddr,
		"db_path":      cfg.DBPath,
	})

	// Initialize repository
	grammarPath := filepath.Join(cfg.DataDir, "grammars")
	repo := repository.NewSQLiteRepository(db, grammarPath)

	// Initialize services
	grammarService := services.NewGrammarService(grammarPath)
	miningService := services.NewMiningService(repo, grammarService, cfg.MinerWorkers)
	generateService := services.NewGenerateService(cfg.GenMaxDepth)

	// Log services initialization
	db.Event("info", "services.init", "Initializing services", map[string]interface{}{
		"http_addr":     cfg.HTTPAddr,
		"nats_url":      cfg.NatsURL,
		"miner_workers": cfg.MinerWorkers,
	})

	// Initialize NATS service
	natsService, err := services.NewNATSService(cfg, miningService, generateService)
	if err != nil {
		db.Event("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
			"nats_url": cfg.NatsURL,
			"error":    err.Error(),
		})
		slog.Error("Failed to create NATS service", "error", err)
		os.Exit(1)
	}

	// Initialize Health service for discovery
	healthService := services.NewHealthService(natsService.GetConnection(), cfg)

	// Start HTTP server
	httpServer := server.NewServer(cfg.HTTPAddr, miningService, generateService, grammarService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Log server ready
	db.Event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr":    cfg.HTTPAddr,
		"service_name": cfg.ServiceName,
		"nats_url":     cfg.NatsURL,
	})

	// Start all services
	go func() {
		if err := httpServer.Start(ctx); err != nil {
			db.Event("error", "http.failed", "HTTP server failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	go func() {
		if err := natsService.Start(ctx); err != nil {
			db.Event("error", "nats.failed", "NATS service failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("NATS service failed", "error", err)
		}
	}()

	go func() {
		if err := healthService.Start(ctx); err != nil {
			db.Event("error", "health.failed", "Health service failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("Health service failed", "error", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down server")
}
