// cmd/inventory/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"shelfsort/internal/auth"
	"shelfsort/internal/blob"
	"shelfsort/internal/catalog"
	"shelfsort/internal/config"
	"shelfsort/internal/runstore"
	"shelfsort/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "shelfsort-inventory",
		Endpoint:    cfg.OTLPEndpoint,
		Registerer:  registry,
	})
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdown(context.Background())

	opts := catalog.Options{
		Size:               cfg.CatalogSize,
		Seed:               cfg.Seed,
		PurchasesPerMinute: cfg.PurchasesPerMinute,
		Logger:             logger,
	}
	if cfg.RunStoreDriver != "none" {
		store, err := runstore.Open(ctx, cfg.RunStoreDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer store.Close()
		opts.Runs = store
	}

	svc, err := catalog.NewService(opts)
	if err != nil {
		log.Fatalf("Failed to create catalog: %v", err)
	}

	sink, err := blob.Open(ctx, blob.Driver(cfg.ExportDriver), cfg.ExportDir, blob.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		PathStyle:       cfg.S3PathStyle,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to create export sink: %v", err)
	}

	handler := catalog.NewHandler(svc, catalog.HandlerOptions{
		Sink:       sink,
		Verifier:   auth.NewVerifier(cfg.AdminTokenHash, cfg.AdminTokenSalt),
		ProbeCount: cfg.ProbeCount,
		Registry:   registry,
		Logger:     logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("starting inventory service",
		"port", cfg.Port, "catalog_size", cfg.CatalogSize,
		"run_store", cfg.RunStoreDriver, "export_driver", cfg.ExportDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
