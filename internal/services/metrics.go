package services

import (
	"context"
	"idea-research/internal/models"
	"idea-research/internal/utils"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics exports worker activity as Prometheus metrics
type TaskMetrics struct {
	finished *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTaskMetrics registers the task metrics and queue gauges on reg
func NewTaskMetrics(reg prometheus.Registerer, worker *WorkflowWorker) (*TaskMetrics, error) {
	m := &TaskMetrics{
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research",
			Subsystem: "worker",
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal status, by kind and status.",
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "research",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Time from task start to terminal status.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{"kind"}),
	}

	collectors := []prometheus.Collector{m.finished, m.duration}
	if worker != nil {
		collectors = append(collectors,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "research",
				Subsystem: "worker",
				Name:      "queue_depth",
				Help:      "Tasks waiting to be processed.",
			}, func() float64 { return float64(worker.QueueLength()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "research",
				Subsystem: "worker",
				Name:      "tasks_processing",
				Help:      "Tasks currently being processed.",
			}, func() float64 { return float64(worker.Store().Count()[models.TaskStatusProcessing]) }),
		)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordTask counts a finished task and observes its run time
func (m *TaskMetrics) RecordTask(_ context.Context, state models.TaskState) error {
	m.finished.WithLabelValues(string(state.Kind), string(state.Status)).Inc()
	if state.StartedAt != nil {
		m.duration.WithLabelValues(string(state.Kind)).Observe(utils.ElapsedSeconds(state.StartedAt, state.CompletedAt, time.Now()))
	}
	return nil
}
