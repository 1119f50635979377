package database

import (
	"context"
	"fmt"
	"idea-research/internal/config"
	"idea-research/internal/models"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const taskMeasurement = "research_task"

// InfluxTelemetry writes one point per finished task to InfluxDB
type InfluxTelemetry struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// NewInfluxTelemetry creates an InfluxDB 2.0 client and checks its health
func NewInfluxTelemetry(cfg config.InfluxDBConfig, logger *slog.Logger) (*InfluxTelemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing InfluxDB client", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		logger.Warn("InfluxDB health check did not pass", "status", health.Status)
	}

	return &InfluxTelemetry{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger,
	}, nil
}

// TaskPoint builds the telemetry point for a task
func TaskPoint(state models.TaskState) *write.Point {
	ts := state.CreatedAt
	if state.CompletedAt != nil {
		ts = *state.CompletedAt
	}

	fields := map[string]interface{}{
		"progress":     state.Progress,
		"wait_seconds": 0.0,
		"run_seconds":  state.Elapsed(ts).Seconds(),
	}
	if state.StartedAt != nil {
		fields["wait_seconds"] = state.StartedAt.Sub(state.CreatedAt).Seconds()
	}
	if state.ErrorMessage != "" {
		fields["error"] = state.ErrorMessage
	}

	return influxdb2.NewPoint(taskMeasurement,
		map[string]string{
			"kind":       string(state.Kind),
			"status":     string(state.Status),
			"session_id": state.SessionID,
		},
		fields,
		ts)
}

// RecordTask writes the task's terminal state
func (t *InfluxTelemetry) RecordTask(ctx context.Context, state models.TaskState) error {
	if err := t.writeAPI.WritePoint(ctx, TaskPoint(state)); err != nil {
		return fmt.Errorf("failed to write to InfluxDB: %w", err)
	}
	return nil
}

// Close releases the client
func (t *InfluxTelemetry) Close() {
	t.client.Close()
}
