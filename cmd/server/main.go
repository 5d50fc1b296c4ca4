// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log" // Standard log for messages before zap is available
	"os"
	"os/signal"
	"syscall"
	"time"

	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/database"
	platformElasticsearch "waste_portal_backend/internal/platform/elasticsearch"
	"waste_portal_backend/internal/platform/logger"
	"waste_portal_backend/internal/report"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "reindex-reports" {
		reindexCmd := flag.NewFlagSet("reindex-reports", flag.ExitOnError)
		batchSize := reindexCmd.Int("batch-size", 200, "Reports loaded from the database per batch")
		workers := reindexCmd.Int("workers", 2, "Concurrent bulk indexer workers")
		_ = reindexCmd.Parse(os.Args[2:])

		if err := runReindex(*batchSize, *workers); err != nil {
			log.Fatalf("FATAL: Report reindex failed: %v", err)
		}
		return
	}

	startServer()
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}

// runReindex streams every report from the database into the Elasticsearch index.
func runReindex(batchSize, workers int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, err := database.NewGORM(cfg)
	if err != nil {
		return err
	}
	defer database.CloseGORMDB(db)

	esClient, err := platformElasticsearch.NewClient(cfg, appLogger)
	if err != nil {
		return err
	}
	if esClient == nil {
		return fmt.Errorf("ELASTICSEARCH_URL must be set to reindex reports")
	}
	index := platformElasticsearch.NewReportIndex(esClient, appLogger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := index.EnsureIndex(ctx); err != nil {
		return err
	}
	writer, err := index.NewBulkWriter(workers, 5<<20)
	if err != nil {
		return err
	}

	appLogger.Info("Starting report reindex", zap.Int("batchSize", batchSize), zap.Int("workers", workers))
	queued, reindexErr := report.Reindex(ctx, report.NewGORMRepository(db), writer, batchSize)
	indexed, failed, closeErr := writer.Close(ctx)
	appLogger.Info("Report reindex finished",
		zap.Int("queued", queued),
		zap.Uint64("indexed", indexed),
		zap.Uint64("failed", failed),
	)
	if reindexErr != nil {
		return reindexErr
	}
	if closeErr != nil {
		return closeErr
	}
	if failed > 0 {
		return fmt.Errorf("%d reports failed to index", failed)
	}
	return nil
}
