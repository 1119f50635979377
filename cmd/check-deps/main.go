package main

import (
	"context"
	"fmt"
	"idea-research/internal/config"
	"idea-research/internal/database"
	"idea-research/internal/models"
	"idea-research/internal/services"
	"idea-research/internal/utils"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"
)

// check-deps verifies connectivity to the optional backing stores
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("=== Dependency Check ===\n\n")

	failures := 0
	report := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Printf("[FAIL] %-10s %v\n", name, err)
			return
		}
		fmt.Printf("[ OK ] %s\n", name)
	}
	skip := func(name, reason string) {
		fmt.Printf("[SKIP] %-10s %s\n", name, reason)
	}

	if cfg.MongoDB.Enabled() {
		report("MongoDB", checkMongo(ctx, cfg.MongoDB, logger))
	} else {
		skip("MongoDB", "not configured")
	}

	if cfg.InfluxDB.Enabled() {
		report("InfluxDB", checkInflux(ctx, cfg.InfluxDB, logger))
	} else {
		skip("InfluxDB", "not configured")
	}

	if cfg.S3.Enabled() {
		report("S3", checkS3(ctx, cfg.S3))
	} else {
		report("Storage", checkLocalStorage(ctx, cfg.Storage))
	}

	fmt.Println()
	if failures > 0 {
		fmt.Printf("%d check(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("All configured dependencies are reachable")
}

// checkMongo round-trips a throwaway strategy document
func checkMongo(ctx context.Context, cfg config.MongoDBConfig, logger *slog.Logger) error {
	client, err := database.NewMongoDBClient(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	probe := &models.Strategy{
		ID:        "check-deps-" + utils.GenerateUUID(),
		SessionID: "check-deps",
		Status:    models.SessionStatusPending,
		CreatedAt: time.Now(),
	}
	if err := client.Save(ctx, probe); err != nil {
		return err
	}
	if _, err := client.Get(ctx, probe.ID); err != nil {
		return err
	}
	return nil
}

func checkInflux(ctx context.Context, cfg config.InfluxDBConfig, logger *slog.Logger) error {
	telemetry, err := database.NewInfluxTelemetry(cfg, logger)
	if err != nil {
		return err
	}
	defer telemetry.Close()

	now := time.Now()
	return telemetry.RecordTask(ctx, models.TaskState{
		TaskID:      "check-deps",
		SessionID:   "check-deps",
		Kind:        models.TaskKindMarketAnalysis,
		Status:      models.TaskStatusCancelled,
		CreatedAt:   now,
		CompletedAt: &now,
	})
}

func checkS3(ctx context.Context, cfg config.S3Config) error {
	storage, err := services.NewS3Storage(cfg)
	if err != nil {
		return err
	}
	return storage.HeadBucket(ctx)
}

func checkLocalStorage(ctx context.Context, cfg config.StorageConfig) error {
	storage, err := services.NewLocalStorage(cfg.BasePath, cfg.BaseURL)
	if err != nil {
		return err
	}
	key, err := storage.UploadReport(ctx, "check-deps", "probe", strings.NewReader("%PDF-1.4\n"), "application/pdf")
	if err != nil {
		return err
	}
	reader, _, err := storage.GetObject(ctx, key)
	if err != nil {
		return err
	}
	reader.Close()
	return os.Remove(storage.BasePath() + "/" + key)
}
