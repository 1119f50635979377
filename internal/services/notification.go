package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// NotificationSink receives task lifecycle events. The worker calls OnProgress
// zero or more times and then at most one of OnCompleted or OnFailed per task.
// Errors are logged by the caller and never change task state.
type NotificationSink interface {
	OnProgress(ctx context.Context, taskID string, progress int, status string, message string) error
	OnCompleted(ctx context.Context, taskID string, result any) error
	OnFailed(ctx context.Context, taskID string, errorMessage string) error
}

// MultiSink fans every event out to all of its sinks. One failing sink does
// not stop delivery to the others.
type MultiSink []NotificationSink

func (m MultiSink) OnProgress(ctx context.Context, taskID string, progress int, status string, message string) error {
	var errs []error
	for _, sink := range m {
		if err := callSink(func() error { return sink.OnProgress(ctx, taskID, progress, status, message) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) OnCompleted(ctx context.Context, taskID string, result any) error {
	var errs []error
	for _, sink := range m {
		if err := callSink(func() error { return sink.OnCompleted(ctx, taskID, result) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) OnFailed(ctx context.Context, taskID string, errorMessage string) error {
	var errs []error
	for _, sink := range m {
		if err := callSink(func() error { return sink.OnFailed(ctx, taskID, errorMessage) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes task events to a structured logger
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs events at debug (progress) and info level
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) OnProgress(ctx context.Context, taskID string, progress int, status string, message string) error {
	s.logger.DebugContext(ctx, "task progress", "task_id", taskID, "progress", progress, "status", status, "message", message)
	return nil
}

func (s *LogSink) OnCompleted(ctx context.Context, taskID string, _ any) error {
	s.logger.InfoContext(ctx, "task completed", "task_id", taskID)
	return nil
}

func (s *LogSink) OnFailed(ctx context.Context, taskID string, errorMessage string) error {
	s.logger.WarnContext(ctx, "task failed", "task_id", taskID, "error", errorMessage)
	return nil
}

// callSink turns a panicking sink into an error
func callSink(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification sink panic: %v", r)
		}
	}()
	return call()
}
