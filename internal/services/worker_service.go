package services

import (
	"context"
	"fmt"
	"idea-research/internal/models"
	"idea-research/internal/utils"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// ExecutorFunc runs one dequeued task and returns its result
type ExecutorFunc func(ctx context.Context, run *TaskRun) (any, error)

// Executor is one entry of the dispatch table. Validate runs synchronously at
// enqueue time; Execute runs on the worker goroutine.
type Executor struct {
	Validate func(params map[string]any) error
	Execute  ExecutorFunc
}

// ExecutorRegistry maps each task kind to its executor
type ExecutorRegistry map[models.TaskKind]Executor

// TaskRecorder observes tasks once the worker is done with them
type TaskRecorder interface {
	RecordTask(ctx context.Context, state models.TaskState) error
}

// WorkerSettings holds the worker loop timings
type WorkerSettings struct {
	IdleWait     time.Duration
	ErrorBackoff time.Duration
}

// TaskRun is the executor's view of the task being processed
type TaskRun struct {
	models.TaskDescriptor
	worker *WorkflowWorker
}

// ReportProgress raises the task's progress and notifies the sink. It does
// nothing once the task has been cancelled.
func (r *TaskRun) ReportProgress(ctx context.Context, progress int, message string) {
	if r.worker == nil {
		return
	}
	r.worker.reportProgress(ctx, r.TaskID, progress, message)
}

// Param returns a parameter as a string, or "" when absent
func (r *TaskRun) Param(key string) string {
	return paramString(r.Parameters, key)
}

// WorkflowWorker owns the task queue and drains it on a single goroutine.
// Tasks run strictly one at a time in enqueue order.
type WorkflowWorker struct {
	store        *TaskStatusStore
	queue        *TaskQueue
	executors    ExecutorRegistry
	sink         NotificationSink
	recorders    []TaskRecorder
	idleWait     time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger
	mutex        sync.RWMutex

	// enqueueMutex keeps the session index in queue order
	enqueueMutex sync.Mutex

	inflightMutex  sync.Mutex
	inflightID     string
	inflightCancel context.CancelFunc
}

// NewWorkflowWorker creates a worker. sink and logger may be nil.
func NewWorkflowWorker(
	store *TaskStatusStore,
	queue *TaskQueue,
	executors ExecutorRegistry,
	sink NotificationSink,
	settings WorkerSettings,
	logger *slog.Logger,
) *WorkflowWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.IdleWait <= 0 {
		settings.IdleWait = time.Second
	}
	if settings.ErrorBackoff < 0 {
		settings.ErrorBackoff = 0
	}

	registry := make(ExecutorRegistry, len(executors))
	maps.Copy(registry, executors)

	return &WorkflowWorker{
		store:        store,
		queue:        queue,
		executors:    registry,
		sink:         sink,
		idleWait:     settings.IdleWait,
		errorBackoff: settings.ErrorBackoff,
		logger:       logger.With("component", "workflow_worker"),
	}
}

// Register adds or replaces the executor for a task kind
func (w *WorkflowWorker) Register(kind models.TaskKind, executor Executor) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.executors[kind] = executor
}

// AddRecorder attaches a recorder that sees every task the worker finishes
func (w *WorkflowWorker) AddRecorder(recorder TaskRecorder) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.recorders = append(w.recorders, recorder)
}

// Store exposes the status store for read-only consumers
func (w *WorkflowWorker) Store() *TaskStatusStore {
	return w.store
}

// QueueLength returns the number of tasks waiting to be processed
func (w *WorkflowWorker) QueueLength() int {
	return w.queue.Len()
}

// Enqueue validates and queues a task, returning its id without waiting for execution
func (w *WorkflowWorker) Enqueue(kind models.TaskKind, sessionID string, parameters map[string]any) (string, error) {
	if !kind.Valid() {
		return "", newEnqueueError(string(kind), ErrUnknownTaskKind, "")
	}

	executor, ok := w.executor(kind)
	if !ok {
		return "", newEnqueueError(string(kind), ErrUnknownTaskKind, "no executor registered")
	}

	if sessionID == "" {
		return "", newEnqueueError(string(kind), ErrInvalidParameters, "sessionId is required")
	}

	params := maps.Clone(parameters)
	if params == nil {
		params = make(map[string]any)
	}

	if executor.Validate != nil {
		if err := executor.Validate(params); err != nil {
			return "", newEnqueueError(string(kind), ErrInvalidParameters, err.Error())
		}
	}

	desc := models.TaskDescriptor{
		TaskID:     utils.GenerateUUID(),
		SessionID:  sessionID,
		Kind:       kind,
		Parameters: params,
		CreatedAt:  time.Now(),
	}

	w.enqueueMutex.Lock()
	w.store.Create(desc)
	w.queue.Enqueue(desc)
	w.enqueueMutex.Unlock()

	w.logger.Info("task enqueued", "task_id", desc.TaskID, "session_id", sessionID, "kind", kind)
	return desc.TaskID, nil
}

// GetStatus returns a snapshot of the task's state
func (w *WorkflowWorker) GetStatus(taskID string) (models.TaskState, bool) {
	return w.store.Get(taskID)
}

// ListSessionTasks returns the session's tasks in enqueue order
func (w *WorkflowWorker) ListSessionTasks(sessionID string) []models.TaskState {
	return w.store.ListSession(sessionID)
}

// Cancel cancels a Queued or Processing task. A Queued task is skipped when
// dequeued. A Processing task observes the cancellation at its next check
// point; in-flight analysis calls are not interrupted. Cancelling a terminal
// task is a no-op.
func (w *WorkflowWorker) Cancel(taskID string) (models.TaskState, error) {
	state, previous, err := w.store.Cancel(taskID)
	if err != nil {
		return models.TaskState{}, err
	}

	switch previous {
	case models.TaskStatusQueued:
		w.logger.Info("queued task cancelled", "task_id", taskID)
	case models.TaskStatusProcessing:
		w.cancelInflight(taskID)
		w.logger.Info("processing task cancelled", "task_id", taskID)
	}
	return state, nil
}

// Run drains the queue until ctx is cancelled
func (w *WorkflowWorker) Run(ctx context.Context) error {
	w.logger.Info("workflow worker started", "idle_wait", w.idleWait)
	defer w.logger.Info("workflow worker stopped")

	for {
		desc, err := w.queue.Dequeue(ctx, w.idleWait)
		if err != nil {
			return nil
		}

		if err := w.safeProcess(ctx, desc); err != nil {
			w.logger.Error("error in workflow worker loop", "task_id", desc.TaskID, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.errorBackoff):
			}
		}
	}
}

func (w *WorkflowWorker) safeProcess(ctx context.Context, desc models.TaskDescriptor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing task %s: %v", desc.TaskID, r)
		}
	}()
	return w.processTask(ctx, desc)
}

func (w *WorkflowWorker) processTask(ctx context.Context, desc models.TaskDescriptor) error {
	logger := w.logger.With("task_id", desc.TaskID, "session_id", desc.SessionID, "kind", desc.Kind)

	state, exists := w.store.Get(desc.TaskID)
	if !exists {
		return fmt.Errorf("no status record for task %s", desc.TaskID)
	}
	if state.Status == models.TaskStatusCancelled {
		logger.Info("skipping cancelled task")
		w.record(ctx, desc.TaskID)
		return nil
	}

	if !w.store.MarkProcessing(desc.TaskID, 10, "Task started") {
		// Cancelled between the read above and the transition
		logger.Info("skipping cancelled task")
		w.record(ctx, desc.TaskID)
		return nil
	}
	w.notifyProgress(ctx, desc.TaskID, 10, "Task started")

	logger.Info("processing task")
	start := time.Now()

	executor, ok := w.executor(desc.Kind)
	if !ok {
		w.finish(ctx, desc.TaskID, nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, desc.Kind))
		return nil
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.setInflight(desc.TaskID, cancel)
	defer w.setInflight("", nil)

	if current, _ := w.store.Get(desc.TaskID); current.Status == models.TaskStatusCancelled {
		cancel()
	}

	run := &TaskRun{TaskDescriptor: desc, worker: w}
	result, err := w.execute(taskCtx, executor.Execute, run)
	w.finish(ctx, desc.TaskID, result, err)

	logger.Info("task finished", "duration", time.Since(start).Round(time.Millisecond), "error", err)
	return nil
}

// execute runs the executor, converting a panic into an error
func (w *WorkflowWorker) execute(ctx context.Context, fn ExecutorFunc, run *TaskRun) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if fn == nil {
		return nil, fmt.Errorf("%w: %s has no execute function", ErrUnknownTaskKind, run.Kind)
	}
	return fn(ctx, run)
}

// finish records the terminal state and emits the single matching notification.
// A task cancelled during execution keeps its Cancelled status and is not notified.
func (w *WorkflowWorker) finish(ctx context.Context, taskID string, result any, err error) {
	if err != nil {
		if w.store.Fail(taskID, err.Error()) {
			w.safeNotify(ctx, taskID, "failed", func(sink NotificationSink) error {
				return sink.OnFailed(ctx, taskID, err.Error())
			})
		}
	} else if w.store.Complete(taskID, result) {
		w.safeNotify(ctx, taskID, "completed", func(sink NotificationSink) error {
			return sink.OnCompleted(ctx, taskID, result)
		})
	}
	w.record(ctx, taskID)
}

func (w *WorkflowWorker) reportProgress(ctx context.Context, taskID string, progress int, message string) {
	current, ok := w.store.UpdateProgress(taskID, progress, message)
	if !ok {
		return
	}
	w.notifyProgress(ctx, taskID, current, message)
}

func (w *WorkflowWorker) notifyProgress(ctx context.Context, taskID string, progress int, message string) {
	w.safeNotify(ctx, taskID, "progress", func(sink NotificationSink) error {
		return sink.OnProgress(ctx, taskID, progress, string(models.TaskStatusProcessing), message)
	})
}

// safeNotify calls the sink, logging (never propagating) errors and panics
func (w *WorkflowWorker) safeNotify(ctx context.Context, taskID, event string, call func(NotificationSink) error) {
	if w.sink == nil {
		return
	}
	if err := callSink(func() error { return call(w.sink) }); err != nil {
		w.logger.WarnContext(ctx, "failed to deliver task notification", "task_id", taskID, "event", event, "error", err)
	}
}

func (w *WorkflowWorker) record(ctx context.Context, taskID string) {
	w.mutex.RLock()
	recorders := w.recorders
	w.mutex.RUnlock()
	if len(recorders) == 0 {
		return
	}

	state, ok := w.store.Get(taskID)
	if !ok {
		return
	}
	for _, recorder := range recorders {
		if err := recorder.RecordTask(context.WithoutCancel(ctx), state); err != nil {
			w.logger.Warn("failed to record task", "task_id", taskID, "error", err)
		}
	}
}

func (w *WorkflowWorker) executor(kind models.TaskKind) (Executor, bool) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	executor, ok := w.executors[kind]
	return executor, ok
}

func (w *WorkflowWorker) setInflight(taskID string, cancel context.CancelFunc) {
	w.inflightMutex.Lock()
	defer w.inflightMutex.Unlock()
	w.inflightID = taskID
	w.inflightCancel = cancel
}

func (w *WorkflowWorker) cancelInflight(taskID string) {
	w.inflightMutex.Lock()
	defer w.inflightMutex.Unlock()
	if w.inflightID == taskID && w.inflightCancel != nil {
		w.inflightCancel()
	}
}
