package services

import (
	"context"
	"idea-research/internal/database"
	"idea-research/internal/models"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentReport struct {
	to         string
	strategyID string
	reportURL  string
	pdfSize    int
}

type fakeMailer struct {
	mutex sync.Mutex
	sent  []sentReport
}

func (m *fakeMailer) SendStrategyReport(toEmail string, strategy *models.Strategy, reportURL string, pdfData []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sent = append(m.sent, sentReport{to: toEmail, strategyID: strategy.ID, reportURL: reportURL, pdfSize: len(pdfData)})
	return nil
}

func (m *fakeMailer) reports() []sentReport {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]sentReport(nil), m.sent...)
}

type researchHarness struct {
	service *ResearchService
	worker  *WorkflowWorker
	repo    *database.MemoryStrategyRepository
	hub     *ProgressHub
	mailer  *fakeMailer
}

// newResearchHarness wires a research service around provider. With reports
// enabled, PDFs land in a temporary directory.
func newResearchHarness(t *testing.T, provider AnalysisProvider, options OptionGenerator, withReports bool) *researchHarness {
	t.Helper()
	analyzer := NewTemplateAnalyzer(0)
	store := NewTaskStatusStore()
	hub := NewProgressHub(store, nil)
	worker := NewWorkflowWorker(store, NewTaskQueue(), NewAnalysisExecutors(analyzer, analyzer, store), hub,
		WorkerSettings{IdleWait: 10 * time.Millisecond}, nil)

	h := &researchHarness{
		worker: worker,
		repo:   database.NewMemoryStrategyRepository(),
		hub:    hub,
		mailer: &fakeMailer{},
	}

	var reports ReportOptions
	if withReports {
		storage, err := NewLocalStorage(t.TempDir(), "http://localhost:8085/storage/")
		require.NoError(t, err)
		reports = ReportOptions{PDF: NewPDFService(), Storage: storage, Mailer: h.mailer}
	}

	h.service = NewResearchService(worker, NewStrategyPipeline(provider, options, nil), h.repo, hub, reports, nil)
	return h
}

func drain(events <-chan models.ProgressEvent) []models.ProgressEvent {
	var collected []models.ProgressEvent
	for {
		select {
		case event := <-events:
			collected = append(collected, event)
		default:
			return collected
		}
	}
}

func TestStartStrategy_RunsThroughWorker(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, true)
	events, unsubscribe := h.hub.Subscribe("session-42")
	defer unsubscribe()
	startWorker(t, h.worker)

	ctx := context.Background()
	started, err := h.service.StartStrategy(ctx, models.StartStrategyRequest{
		SessionID:       "session-42",
		IdeaTitle:       "Pet-sitting marketplace",
		IdeaDescription: "A marketplace connecting pet owners with vetted sitters",
		Approach:        "quick-validation",
		NotifyEmail:     "founder@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "session-42", started.SessionID)
	assert.NotEmpty(t, started.StrategyID)

	state := waitForStatus(t, h.worker, started.TaskID, models.TaskStatusCompleted)
	assert.Equal(t, models.TaskKindStrategyExecution, state.Kind)
	assert.Equal(t, 100, state.Progress)

	result, ok := state.Result.(*models.Strategy)
	require.True(t, ok)
	assert.Equal(t, started.StrategyID, result.ID)
	assert.Equal(t, models.SessionStatusCompleted, result.Status)

	strategy, err := h.service.GetStrategy(ctx, started.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, strategy.Status)
	assert.Len(t, strategy.Insights, 3)
	assert.Len(t, strategy.Options, 2)
	assert.Equal(t, "http://localhost:8085/storage/reports/session-42/"+strategy.ID+".pdf", strategy.ReportURL)

	report, contentType, err := h.service.OpenReport(ctx, strategy.ID)
	require.NoError(t, err)
	defer report.Close()
	data, err := io.ReadAll(report)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "%PDF", string(data[:4]))

	sent := h.mailer.reports()
	require.Len(t, sent, 1)
	assert.Equal(t, "founder@example.com", sent[0].to)
	assert.Equal(t, strategy.ReportURL, sent[0].reportURL)
	assert.Equal(t, len(data), sent[0].pdfSize)

	// The completion event is published just after the status flips
	var collected []models.ProgressEvent
	require.Eventually(t, func() bool {
		collected = append(collected, drain(events)...)
		for _, event := range collected {
			if event.Type == models.EventTaskCompleted {
				return true
			}
		}
		return false
	}, waitTimeout, 5*time.Millisecond)

	var phases []string
	var last float64
	completed := 0
	for _, event := range collected {
		switch event.Type {
		case models.EventStrategyProgress:
			assert.Equal(t, started.StrategyID, event.StrategyID)
			phases = append(phases, event.Phase)
		case models.EventTaskProgress:
			assert.GreaterOrEqual(t, event.Progress, last)
			last = event.Progress
		case models.EventTaskCompleted:
			completed++
		}
	}
	assert.Equal(t, []string{
		models.PhaseMarketContext,
		models.PhaseCompetitiveIntelligence,
		models.PhaseStrategicAssessment,
		models.PhaseStrategicOptions,
		models.PhaseNextSteps,
		models.PhaseCompleted,
	}, phases)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 95.0, last)
}

func TestStartStrategy_UnknownApproach(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, false)

	_, err := h.service.StartStrategy(context.Background(), models.StartStrategyRequest{
		SessionID:       "s",
		IdeaTitle:       "x",
		IdeaDescription: "y",
		Approach:        "Moonshot",
	})
	assert.ErrorIs(t, err, ErrUnknownApproach)
	assert.Empty(t, h.worker.ListSessionTasks("s"))

	strategies, err := h.service.ListSessionStrategies(context.Background(), "s")
	require.NoError(t, err)
	assert.Empty(t, strategies)
}

func TestStartStrategy_GeneratesSessionID(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, false)

	started, err := h.service.StartStrategy(context.Background(), models.StartStrategyRequest{
		IdeaTitle:       "x",
		IdeaDescription: "y",
		Approach:        models.ApproachMarketDeepDive,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, started.SessionID)

	strategies, err := h.service.ListSessionStrategies(context.Background(), started.SessionID)
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.Equal(t, models.SessionStatusPending, strategies[0].Status)
}

func TestStrategyTask_FailurePersistsFailedStrategy(t *testing.T) {
	h := newResearchHarness(t, &scriptedProvider{failAt: 2}, &fixedOptions{}, true)
	startWorker(t, h.worker)

	started, err := h.service.StartStrategy(context.Background(), models.StartStrategyRequest{
		SessionID:       "s",
		IdeaTitle:       "x",
		IdeaDescription: "y",
		Approach:        models.ApproachMarketDeepDive,
		NotifyEmail:     "founder@example.com",
	})
	require.NoError(t, err)

	state := waitForStatus(t, h.worker, started.TaskID, models.TaskStatusFailed)
	assert.Contains(t, state.ErrorMessage, "upstream timeout")
	assert.Equal(t, 26, state.Progress, "10 + 20% of the 80 point span")

	strategy, err := h.service.GetStrategy(context.Background(), started.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFailed, strategy.Status)
	assert.Len(t, strategy.Insights, 1)
	assert.Empty(t, strategy.ReportURL)
	assert.Empty(t, h.mailer.reports())

	_, _, err = h.service.OpenReport(context.Background(), started.StrategyID)
	assert.ErrorIs(t, err, ErrReportUnavailable)
}

func TestStrategyTask_CancelWhileRunning(t *testing.T) {
	inPhase := make(chan struct{})
	release := make(chan struct{})
	provider := &scriptedProvider{onCall: func(call int) {
		if call == 1 {
			close(inPhase)
			<-release
		}
	}}
	h := newResearchHarness(t, provider, &fixedOptions{}, false)
	startWorker(t, h.worker)

	started, err := h.service.StartStrategy(context.Background(), models.StartStrategyRequest{
		SessionID:       "s",
		IdeaTitle:       "x",
		IdeaDescription: "y",
		Approach:        models.ApproachLaunchStrategy,
	})
	require.NoError(t, err)

	select {
	case <-inPhase:
	case <-time.After(waitTimeout):
		t.Fatal("strategy never started")
	}

	state, err := h.worker.Cancel(started.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, state.Status)
	close(release)

	require.Eventually(t, func() bool {
		strategy, err := h.service.GetStrategy(context.Background(), started.StrategyID)
		return err == nil && strategy.Status == models.SessionStatusFailed
	}, waitTimeout, 5*time.Millisecond)

	strategy, _ := h.service.GetStrategy(context.Background(), started.StrategyID)
	assert.Contains(t, strategy.ErrorMessage, "research cancelled")
	assert.Len(t, strategy.Insights, 1)

	state, _ = h.worker.GetStatus(started.TaskID)
	assert.Equal(t, models.TaskStatusCancelled, state.Status)
	_, err = h.service.TaskResult(started.TaskID)
	assert.ErrorIs(t, err, ErrTaskCancelled)
}

func TestRunSync(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, true)

	strategy, err := h.service.RunSync(context.Background(), models.StartStrategyRequest{
		SessionID:       "sync",
		IdeaTitle:       "Pet-sitting marketplace",
		IdeaDescription: "Marketplace for pet owners",
		Approach:        models.ApproachMarketDeepDive,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, strategy.Status)
	assert.Len(t, strategy.Options, 3)
	assert.NotEmpty(t, strategy.ReportURL)
	assert.Empty(t, h.mailer.reports(), "no email without notifyEmail")

	stored, err := h.service.ListSessionStrategies(context.Background(), "sync")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, strategy.ID, stored[0].ID)
	assert.Equal(t, models.SessionStatusCompleted, stored[0].Status)

	_, err = h.service.RunSync(context.Background(), models.StartStrategyRequest{Approach: "nope"})
	assert.ErrorIs(t, err, ErrUnknownApproach)
}

func TestRunSync_ReturnsFailedStrategy(t *testing.T) {
	h := newResearchHarness(t, &scriptedProvider{failAt: 1}, &fixedOptions{}, false)

	strategy, err := h.service.RunSync(context.Background(), models.StartStrategyRequest{
		SessionID:       "sync",
		IdeaTitle:       "x",
		IdeaDescription: "y",
		Approach:        models.ApproachQuickValidation,
	})
	require.Error(t, err)
	require.NotNil(t, strategy)
	assert.Equal(t, models.SessionStatusFailed, strategy.Status)

	stored, err := h.service.GetStrategy(context.Background(), strategy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFailed, stored.Status)
}

func TestGetStrategy_NotFound(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, false)

	_, err := h.service.GetStrategy(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStrategyNotFound)

	_, _, err = h.service.OpenReport(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStrategyNotFound)
}

func TestEnqueueResearchWorkflow_Launch(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, false)
	startWorker(t, h.worker)

	response, err := h.service.EnqueueResearchWorkflow(models.StartWorkflowRequest{
		SessionID:       "workflow",
		IdeaTitle:       "Pet-sitting marketplace",
		IdeaDescription: "A marketplace connecting pet owners with vetted sitters",
		ResearchType:    "Launch_Strategy",
		UserGoals:       "Reach 1000 bookings",
	})
	require.NoError(t, err)
	assert.Equal(t, ResearchTypeLaunch, response.ResearchType)
	require.Len(t, response.TaskIDs, 6)

	for _, taskID := range response.TaskIDs {
		waitForStatus(t, h.worker, taskID, models.TaskStatusCompleted)
	}

	session := h.service.SessionTasks("workflow")
	assert.Equal(t, "Completed", session.Summary.Status)
	assert.Equal(t, 6, session.Summary.Total)
	assert.Equal(t, 6, session.Summary.Completed)
	kinds := make([]models.TaskKind, 0, len(session.Tasks))
	for _, task := range session.Tasks {
		kinds = append(kinds, task.Kind)
		assert.NotNil(t, task.Result)
	}
	assert.Equal(t, workflowKinds[ResearchTypeLaunch], kinds)

	enhanced, err := h.service.TaskResult(response.TaskIDs[4])
	require.NoError(t, err)
	swot := enhanced.(*models.SwotAnalysisResult)
	assert.True(t, swot.Enhanced)
	assert.Contains(t, swotTitles(swot.Threats), "Competition from Established Leader")

	implications, err := h.service.TaskResult(response.TaskIDs[5])
	require.NoError(t, err)
	assert.NotEmpty(t, implications.(*models.StrategicImplicationsResult).KeyImplications)
}

func TestEnqueueResearchWorkflow_RejectsMissingSession(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, false)

	response, err := h.service.EnqueueResearchWorkflow(models.StartWorkflowRequest{
		IdeaTitle:       "x",
		IdeaDescription: "y",
	})
	require.Error(t, err)
	assert.True(t, IsEnqueueError(err))
	assert.Empty(t, response.TaskIDs)
}

func TestTaskResult_States(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	h := newResearchHarness(t, analyzer, analyzer, false)

	_, err := h.service.TaskResult("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	taskID, err := h.worker.Enqueue(models.TaskKindMarketAnalysis, "s", ideaParams())
	require.NoError(t, err)
	_, err = h.service.TaskResult(taskID)
	assert.ErrorIs(t, err, ErrTaskNotCompleted)

	_, err = h.worker.Cancel(taskID)
	require.NoError(t, err)
	_, err = h.service.TaskResult(taskID)
	assert.ErrorIs(t, err, ErrTaskCancelled)
}

func TestNormalizeResearchType(t *testing.T) {
	tests := map[string]string{
		"":                 ResearchTypeQuick,
		"quick":            ResearchTypeQuick,
		"something else":   ResearchTypeQuick,
		"deep-dive":        ResearchTypeDeepDive,
		"Market Deep Dive": ResearchTypeDeepDive,
		"market":           ResearchTypeDeepDive,
		"LAUNCH":           ResearchTypeLaunch,
		"launch_strategy":  ResearchTypeLaunch,
	}
	for input, want := range tests {
		assert.Equal(t, want, NormalizeResearchType(input), input)
	}
}

func TestSummarizeSession(t *testing.T) {
	states := func(statuses ...models.TaskStatus) []models.TaskState {
		result := make([]models.TaskState, 0, len(statuses))
		for _, status := range statuses {
			result = append(result, models.TaskState{Status: status})
		}
		return result
	}
	const (
		queued     = models.TaskStatusQueued
		processing = models.TaskStatusProcessing
		completed  = models.TaskStatusCompleted
		failed     = models.TaskStatusFailed
		cancelled  = models.TaskStatusCancelled
	)

	tests := []struct {
		name  string
		tasks []models.TaskState
		want  string
	}{
		{"empty", nil, "Empty"},
		{"all queued", states(queued, queued), "Queued"},
		{"one processing", states(completed, processing, queued), "Processing"},
		{"completed with pending", states(completed, queued), "Processing"},
		{"all completed", states(completed, completed), "Completed"},
		{"completed and cancelled", states(completed, cancelled), "Completed"},
		{"completed and failed", states(completed, failed), "Completed"},
		{"failed with queued", states(failed, queued), "Failed"},
		{"failed while processing", states(failed, processing), "Processing"},
		{"all cancelled", states(cancelled, cancelled), "Cancelled"},
		{"failed and cancelled", states(failed, cancelled), "Failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := SummarizeSession(tt.tasks)
			assert.Equal(t, tt.want, summary.Status)
			assert.Equal(t, len(tt.tasks), summary.Total)
			assert.Equal(t, summary.Total, summary.Queued+summary.Processing+summary.Completed+summary.Failed+summary.Cancelled)
		})
	}
}

func TestNewStatusResponse(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)

	response := NewStatusResponse(models.TaskState{
		TaskID:      "t",
		Status:      models.TaskStatusCompleted,
		Progress:    100,
		StartedAt:   &started,
		CompletedAt: &finished,
		Result:      "report",
	}, finished.Add(time.Hour))
	assert.Equal(t, "report", response.Result)
	assert.Equal(t, 1.5, response.ElapsedSeconds)

	response = NewStatusResponse(models.TaskState{
		TaskID:       "t",
		Status:       models.TaskStatusFailed,
		StartedAt:    &started,
		Result:       "partial",
		ErrorMessage: "boom",
	}, started.Add(2*time.Second))
	assert.Nil(t, response.Result)
	assert.Equal(t, "boom", response.Error)
	assert.Equal(t, 2.0, response.ElapsedSeconds)

	response = NewStatusResponse(models.TaskState{TaskID: "t", Status: models.TaskStatusQueued}, started)
	assert.Zero(t, response.ElapsedSeconds)
}

type countingRepository struct {
	*database.MemoryStrategyRepository
	saves atomic.Int32
}

func (r *countingRepository) Save(ctx context.Context, strategy *models.Strategy) error {
	r.saves.Add(1)
	return r.MemoryStrategyRepository.Save(ctx, strategy)
}

func TestStrategyTask_PersistsOnlyAtStartAndEnd(t *testing.T) {
	analyzer := NewTemplateAnalyzer(0)
	store := NewTaskStatusStore()
	worker := NewWorkflowWorker(store, NewTaskQueue(), NewAnalysisExecutors(analyzer, analyzer, store), nil,
		WorkerSettings{IdleWait: 10 * time.Millisecond}, nil)
	repo := &countingRepository{MemoryStrategyRepository: database.NewMemoryStrategyRepository()}
	service := NewResearchService(worker, NewStrategyPipeline(analyzer, analyzer, nil), repo, nil, ReportOptions{}, nil)
	startWorker(t, worker)

	started, err := service.StartStrategy(context.Background(), models.StartStrategyRequest{
		SessionID:       "s",
		IdeaTitle:       "Pet-sitting marketplace",
		IdeaDescription: "A marketplace connecting pet owners with vetted sitters",
		Approach:        models.ApproachLaunchStrategy,
	})
	require.NoError(t, err)
	waitForStatus(t, worker, started.TaskID, models.TaskStatusCompleted)

	// Initial save plus the final save; progress checkpoints never write
	assert.EqualValues(t, 2, repo.saves.Load())
	strategy, err := service.GetStrategy(context.Background(), started.StrategyID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, strategy.Status)
	assert.Equal(t, 100.0, strategy.ProgressPercentage)
}
