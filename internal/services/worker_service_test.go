package services

import (
	"context"
	"errors"
	"fmt"
	"idea-research/internal/models"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// recordingSink remembers every notification it receives
type recordingSink struct {
	mutex     sync.Mutex
	progress  map[string][]int
	completed map[string]int
	failed    map[string][]string
	err       error
	panics    bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		progress:  make(map[string][]int),
		completed: make(map[string]int),
		failed:    make(map[string][]string),
	}
}

func (s *recordingSink) OnProgress(_ context.Context, taskID string, progress int, _ string, _ string) error {
	s.mutex.Lock()
	s.progress[taskID] = append(s.progress[taskID], progress)
	s.mutex.Unlock()
	return s.outcome()
}

func (s *recordingSink) OnCompleted(_ context.Context, taskID string, _ any) error {
	s.mutex.Lock()
	s.completed[taskID]++
	s.mutex.Unlock()
	return s.outcome()
}

func (s *recordingSink) OnFailed(_ context.Context, taskID string, errorMessage string) error {
	s.mutex.Lock()
	s.failed[taskID] = append(s.failed[taskID], errorMessage)
	s.mutex.Unlock()
	return s.outcome()
}

func (s *recordingSink) outcome() error {
	if s.panics {
		panic("sink exploded")
	}
	return s.err
}

func (s *recordingSink) progressOf(taskID string) []int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]int(nil), s.progress[taskID]...)
}

func (s *recordingSink) completedCount(taskID string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.completed[taskID]
}

func (s *recordingSink) failedMessages(taskID string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.failed[taskID]...)
}

func newTestWorker(executors ExecutorRegistry, sink NotificationSink) *WorkflowWorker {
	return NewWorkflowWorker(
		NewTaskStatusStore(),
		NewTaskQueue(),
		executors,
		sink,
		WorkerSettings{IdleWait: 10 * time.Millisecond},
		nil,
	)
}

// startWorker runs the worker until the test ends
func startWorker(t *testing.T, w *WorkflowWorker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForStatus(t *testing.T, w *WorkflowWorker, taskID string, status models.TaskStatus) models.TaskState {
	t.Helper()
	require.Eventually(t, func() bool {
		state, ok := w.GetStatus(taskID)
		return ok && state.Status == status
	}, waitTimeout, 5*time.Millisecond, "task %s never reached %s", taskID, status)
	state, _ := w.GetStatus(taskID)
	return state
}

func executeOnly(fn ExecutorFunc) Executor {
	return Executor{Execute: fn}
}

func TestEnqueue_StartsQueuedAtZero(t *testing.T) {
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) { return nil, nil }),
	}, nil)

	taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "session-1", map[string]any{"ideaDescription": "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	state, ok := w.GetStatus(taskID)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusQueued, state.Status)
	assert.Equal(t, 0, state.Progress)
	assert.Equal(t, "session-1", state.SessionID)
	assert.Nil(t, state.StartedAt)
	assert.Equal(t, 1, w.QueueLength())
}

func TestEnqueue_Rejections(t *testing.T) {
	w := newTestWorker(NewAnalysisExecutors(NewTemplateAnalyzer(0), NewTemplateAnalyzer(0), nil), nil)

	tests := []struct {
		name      string
		kind      models.TaskKind
		sessionID string
		params    map[string]any
		sentinel  error
	}{
		{"unknown kind", "Horoscope", "s", map[string]any{"ideaDescription": "x"}, ErrUnknownTaskKind},
		{"kind without executor", models.TaskKindStrategyExecution, "s", map[string]any{"strategyId": "x"}, ErrUnknownTaskKind},
		{"empty session", models.TaskKindMarketAnalysis, "", map[string]any{"ideaDescription": "x"}, ErrInvalidParameters},
		{"missing description", models.TaskKindSwotAnalysis, "s", nil, ErrInvalidParameters},
		{"blank description", models.TaskKindSwotAnalysis, "s", map[string]any{"ideaDescription": "   "}, ErrInvalidParameters},
		{"phase outside approach", models.TaskKindPipelinePhase, "s", map[string]any{
			"ideaDescription": "x",
			"approach":        "QuickValidation",
			"phase":           models.PhaseCustomerUnderstanding,
		}, ErrInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taskID, err := w.Enqueue(tt.kind, tt.sessionID, tt.params)
			require.Error(t, err)
			assert.Empty(t, taskID)
			assert.True(t, IsEnqueueError(err))
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}

	assert.Equal(t, 0, w.QueueLength())
	assert.Empty(t, w.Store().Count())
}

func TestEnqueue_CopiesParameters(t *testing.T) {
	var seen atomic.Value
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			seen.Store(run.Param(models.ParamIdeaDescription))
			return nil, nil
		}),
	}, nil)

	params := map[string]any{models.ParamIdeaDescription: "original"}
	taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", params)
	require.NoError(t, err)
	params[models.ParamIdeaDescription] = "mutated"

	startWorker(t, w)
	waitForStatus(t, w, taskID, models.TaskStatusCompleted)
	assert.Equal(t, "original", seen.Load())
}

func TestWorker_CompletesWithMonotonicProgress(t *testing.T) {
	sink := newRecordingSink()
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			run.ReportProgress(ctx, 30, "Analyzing data")
			run.ReportProgress(ctx, 20, "Going backwards")
			run.ReportProgress(ctx, 60, "Almost there")
			return "market result", nil
		}),
	}, sink)
	startWorker(t, w)

	taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)

	state := waitForStatus(t, w, taskID, models.TaskStatusCompleted)
	assert.Equal(t, 100, state.Progress)
	assert.Equal(t, "market result", state.Result)
	assert.NotNil(t, state.StartedAt)
	assert.NotNil(t, state.CompletedAt)
	assert.Empty(t, state.ErrorMessage)

	require.Eventually(t, func() bool { return sink.completedCount(taskID) == 1 }, waitTimeout, 5*time.Millisecond)
	progress := sink.progressOf(taskID)
	assert.Equal(t, []int{10, 30, 30, 60}, progress)
	assert.IsNonDecreasing(t, progress)
	assert.Empty(t, sink.failedMessages(taskID))
}

func TestWorker_FailureKeepsProgress(t *testing.T) {
	sink := newRecordingSink()
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			run.ReportProgress(ctx, 40, "Halfway")
			return nil, errors.New("analysis service unavailable")
		}),
	}, sink)
	startWorker(t, w)

	taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)

	state := waitForStatus(t, w, taskID, models.TaskStatusFailed)
	assert.Equal(t, 40, state.Progress)
	assert.Equal(t, "analysis service unavailable", state.ErrorMessage)
	assert.Nil(t, state.Result)

	require.Eventually(t, func() bool { return len(sink.failedMessages(taskID)) == 1 }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, []string{"analysis service unavailable"}, sink.failedMessages(taskID))
	assert.Zero(t, sink.completedCount(taskID))
}

func TestWorker_RecoversFromExecutorPanic(t *testing.T) {
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			panic("boom")
		}),
		models.TaskKindSwotAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			return "still running", nil
		}),
	}, nil)
	startWorker(t, w)

	panicking, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)
	next, err := w.Enqueue(models.TaskKindSwotAnalysis, "s", nil)
	require.NoError(t, err)

	state := waitForStatus(t, w, panicking, models.TaskStatusFailed)
	assert.Equal(t, "panic: boom", state.ErrorMessage)

	state = waitForStatus(t, w, next, models.TaskStatusCompleted)
	assert.Equal(t, "still running", state.Result)
}

func TestWorker_SinkErrorsDoNotChangeStatus(t *testing.T) {
	for _, sink := range []*recordingSink{
		{progress: map[string][]int{}, completed: map[string]int{}, failed: map[string][]string{}, err: errors.New("webhook down")},
		{progress: map[string][]int{}, completed: map[string]int{}, failed: map[string][]string{}, panics: true},
	} {
		w := newTestWorker(ExecutorRegistry{
			models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
				run.ReportProgress(ctx, 50, "half")
				return "ok", nil
			}),
		}, sink)
		startWorker(t, w)

		taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
		require.NoError(t, err)

		state := waitForStatus(t, w, taskID, models.TaskStatusCompleted)
		assert.Equal(t, "ok", state.Result)
		assert.Equal(t, 100, state.Progress)
	}
}

func TestWorker_CancelQueuedTaskNeverExecutes(t *testing.T) {
	var mutex sync.Mutex
	var executed []string
	sink := newRecordingSink()
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			mutex.Lock()
			executed = append(executed, run.TaskID)
			mutex.Unlock()
			return nil, nil
		}),
	}, sink)

	cancelledID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)

	state, err := w.Cancel(cancelledID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, state.Status)

	keptID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)

	startWorker(t, w)
	waitForStatus(t, w, keptID, models.TaskStatusCompleted)

	mutex.Lock()
	assert.Equal(t, []string{keptID}, executed)
	mutex.Unlock()

	state, _ = w.GetStatus(cancelledID)
	assert.Equal(t, models.TaskStatusCancelled, state.Status)
	assert.Empty(t, sink.progressOf(cancelledID))
	assert.Zero(t, sink.completedCount(cancelledID))
	assert.Empty(t, sink.failedMessages(cancelledID))
}

func TestWorker_CancelProcessingTask(t *testing.T) {
	started := make(chan struct{})
	returned := make(chan struct{})
	sink := newRecordingSink()
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			defer close(returned)
			close(started)
			<-ctx.Done()
			run.ReportProgress(ctx, 90, "too late")
			return nil, ctx.Err()
		}),
	}, sink)
	startWorker(t, w)

	taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(waitTimeout):
		t.Fatal("executor never started")
	}

	state, err := w.Cancel(taskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, state.Status)

	select {
	case <-returned:
	case <-time.After(waitTimeout):
		t.Fatal("executor did not observe cancellation")
	}

	require.Never(t, func() bool {
		state, _ := w.GetStatus(taskID)
		return state.Status != models.TaskStatusCancelled
	}, 100*time.Millisecond, 10*time.Millisecond)

	state, _ = w.GetStatus(taskID)
	assert.Equal(t, 10, state.Progress)
	assert.Zero(t, sink.completedCount(taskID))
	assert.Empty(t, sink.failedMessages(taskID))
}

func TestWorker_CancelTerminalIsNoOp(t *testing.T) {
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) { return "done", nil }),
	}, nil)
	startWorker(t, w)

	taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)
	before := waitForStatus(t, w, taskID, models.TaskStatusCompleted)

	after, err := w.Cancel(taskID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = w.Cancel("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestWorker_ProcessesInEnqueueOrderOneAtATime(t *testing.T) {
	var (
		mutex    sync.Mutex
		order    []string
		active   atomic.Int32
		overlaps atomic.Int32
	)
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			if active.Add(1) > 1 {
				overlaps.Add(1)
			}
			defer active.Add(-1)
			time.Sleep(time.Millisecond)
			mutex.Lock()
			order = append(order, run.TaskID)
			mutex.Unlock()
			return nil, nil
		}),
	}, nil)

	var ids []string
	for i := 0; i < 10; i++ {
		id, err := w.Enqueue(models.TaskKindMarketAnalysis, fmt.Sprintf("session-%d", i%3), nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	startWorker(t, w)
	waitForStatus(t, w, ids[len(ids)-1], models.TaskStatusCompleted)

	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, ids, order)
	assert.Zero(t, overlaps.Load())
}

func TestWorker_ConcurrentEnqueueRunsEveryTaskOnceInQueueOrder(t *testing.T) {
	var mutex sync.Mutex
	var executed []string
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) {
			mutex.Lock()
			executed = append(executed, run.TaskID)
			mutex.Unlock()
			return nil, nil
		}),
	}, nil)
	startWorker(t, w)

	const producers = 8
	const perProducer = 25
	enqueued := make([][]string, producers)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				id, err := w.Enqueue(models.TaskKindMarketAnalysis, "shared", nil)
				if err == nil {
					enqueued[p] = append(enqueued[p], id)
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, ids := range enqueued {
		require.Len(t, ids, perProducer)
		total += len(ids)
	}

	require.Eventually(t, func() bool {
		return w.Store().Count()[models.TaskStatusCompleted] == total
	}, waitTimeout, 10*time.Millisecond)

	mutex.Lock()
	order := append([]string(nil), executed...)
	mutex.Unlock()

	// The session index and the execution order agree, so each task ran once
	listed := w.ListSessionTasks("shared")
	require.Len(t, listed, total)
	listedIDs := make([]string, len(listed))
	for i, state := range listed {
		listedIDs[i] = state.TaskID
	}
	assert.Equal(t, listedIDs, order)

	// Each producer's tasks ran in the order it enqueued them
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for p, ids := range enqueued {
		for i := 1; i < len(ids); i++ {
			assert.Less(t, position[ids[i-1]], position[ids[i]], "producer %d", p)
		}
	}
}

func TestWorker_RecordsFinishedTasks(t *testing.T) {
	recorder := &fakeRecorder{}
	w := newTestWorker(ExecutorRegistry{
		models.TaskKindMarketAnalysis: executeOnly(func(ctx context.Context, run *TaskRun) (any, error) { return nil, nil }),
	}, nil)
	w.AddRecorder(recorder)
	startWorker(t, w)

	taskID, err := w.Enqueue(models.TaskKindMarketAnalysis, "s", nil)
	require.NoError(t, err)
	waitForStatus(t, w, taskID, models.TaskStatusCompleted)

	require.Eventually(t, func() bool { return len(recorder.states()) == 1 }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, models.TaskStatusCompleted, recorder.states()[0].Status)
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	w := newTestWorker(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("worker did not stop")
	}
}

type fakeRecorder struct {
	mutex    sync.Mutex
	recorded []models.TaskState
}

func (r *fakeRecorder) RecordTask(_ context.Context, state models.TaskState) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.recorded = append(r.recorded, state)
	return nil
}

func (r *fakeRecorder) states() []models.TaskState {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]models.TaskState(nil), r.recorded...)
}
