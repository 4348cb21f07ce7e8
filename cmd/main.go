/**
 * @description
 * This is the main entry point for the wallet-service. It wires the storage
 * backend, the bridge gate, the chain relay client and the event producer into
 * the application service and serves the wallet transfer API.
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Opens the configured key-value storage backend (memory, Redis, PostgreSQL or SQLite).
 * - Publishes transfer notices to RabbitMQ, falling back to a no-op producer.
 * - Evicts idle transfer sessions on a cron schedule.
 * - Implements graceful shutdown.
 *
 * @dependencies
 * - The service's internal packages for config, app logic, storage and API.
 * - godotenv for local config.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/transfa/wallet-service/internal/api"
	"github.com/transfa/wallet-service/internal/app"
	"github.com/transfa/wallet-service/internal/bridge"
	"github.com/transfa/wallet-service/internal/config"
	"github.com/transfa/wallet-service/internal/logging"
	"github.com/transfa/wallet-service/internal/resolver"
	"github.com/transfa/wallet-service/internal/store"
	"github.com/transfa/wallet-service/pkg/chainclient"
	"github.com/transfa/wallet-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logCloser := logging.Setup(logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logCloser.Close()

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 15*time.Second)
	backend, err := store.Open(openCtx, store.Options{
		Backend:        cfg.StorageBackend,
		DatabaseURL:    cfg.DatabaseURL,
		RedisURL:       cfg.RedisURL,
		RedisKeyPrefix: cfg.RedisKeyPrefix,
		SQLitePath:     cfg.SQLitePath,
	})
	cancelOpen()
	if err != nil {
		log.Fatalf("Unable to open storage backend %q: %v", cfg.StorageBackend, err)
	}
	defer backend.Close()
	log.Printf("level=info component=main msg=\"storage backend ready\" backend=%s", cfg.StorageBackend)

	gate := bridge.NewProbeGate(backend, cfg.BridgeWait())
	relay := chainclient.NewClient(cfg.ChainAPIBaseURL, cfg.ChainAPIKey)

	var producer rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if cfg.RabbitMQURL != "" {
		eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.WalletEventsExchange)
		if err != nil {
			log.Printf("level=warn component=main msg=\"rabbitmq unavailable; wallet events disabled\" err=%v", err)
		} else {
			producer = eventProducer
		}
	} else {
		log.Println("level=warn component=main msg=\"RABBITMQ_URL not set; wallet events disabled\"")
	}
	defer producer.Close()

	service := app.NewService(backend, gate, relay, producer, app.Options{
		ResolvePolicy: resolver.Policy{
			MaxAttempts: cfg.ResolveMaxAttempts,
			Interval:    cfg.ResolveInterval(),
		},
		SubmitTimeout:  cfg.SubmitTimeout(),
		SessionIdleTTL: cfg.SessionIdleTTL(),
	})
	defer service.Close()

	sweeper := app.NewSweeper(service, cfg.SessionSweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Unable to schedule session sweeper: %v", err)
	}

	handlers := api.NewWalletHandlers(service)
	router := api.NewRouter(handlers, api.RouterOptions{
		AllowedOrigins:     cfg.AllowedOrigins(),
		JWTAssertionSecret: cfg.JWTAssertionSecret,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %s\n", err)
		}
	}()

	// Wait for termination signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down wallet-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	select {
	case <-sweeper.Stop().Done():
	case <-ctx.Done():
	}

	log.Println("Server gracefully stopped")
}
