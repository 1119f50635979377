package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"idea-research/internal/database"
	"idea-research/internal/models"
	"idea-research/internal/utils"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Task progress reserved around the strategy pipeline: the worker starts a task
// at 10 and the pipeline's 0-100 is scaled into 10-90, leaving room for the report.
const (
	strategyTaskBase   = 10.0
	strategyTaskSpan   = 80.0
	reportTaskProgress = 95
)

// Research types accepted by EnqueueResearchWorkflow
const (
	ResearchTypeQuick    = "quick"
	ResearchTypeDeepDive = "deep-dive"
	ResearchTypeLaunch   = "launch"
)

var workflowKinds = map[string][]models.TaskKind{
	ResearchTypeQuick: {
		models.TaskKindMarketAnalysis,
		models.TaskKindCompetitiveAnalysis,
		models.TaskKindSwotAnalysis,
	},
	ResearchTypeDeepDive: {
		models.TaskKindMarketAnalysis,
		models.TaskKindCompetitiveAnalysis,
		models.TaskKindCustomerSegmentation,
		models.TaskKindSwotAnalysis,
		models.TaskKindEnhancedSwotAnalysis,
	},
	ResearchTypeLaunch: {
		models.TaskKindMarketAnalysis,
		models.TaskKindCompetitiveAnalysis,
		models.TaskKindCustomerSegmentation,
		models.TaskKindSwotAnalysis,
		models.TaskKindEnhancedSwotAnalysis,
		models.TaskKindStrategicImplications,
	},
}

// ReportOptions holds the optional report collaborators. Any of them may be nil.
type ReportOptions struct {
	PDF     *PDFService
	Storage StorageInterface
	Mailer  ReportMailer
}

// ResearchService orchestrates strategies and research workflows on top of
// the workflow worker
type ResearchService struct {
	worker   *WorkflowWorker
	pipeline *StrategyPipeline
	repo     database.StrategyRepository
	hub      *ProgressHub
	reports  ReportOptions
	logger   *slog.Logger
}

// NewResearchService creates the service and registers the StrategyExecution
// executor on the worker. hub may be nil.
func NewResearchService(
	worker *WorkflowWorker,
	pipeline *StrategyPipeline,
	repo database.StrategyRepository,
	hub *ProgressHub,
	reports ReportOptions,
	logger *slog.Logger,
) *ResearchService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ResearchService{
		worker:   worker,
		pipeline: pipeline,
		repo:     repo,
		hub:      hub,
		reports:  reports,
		logger:   logger.With("component", "research_service"),
	}

	worker.Register(models.TaskKindStrategyExecution, Executor{
		Validate: requireStrategyID,
		Execute:  s.executeStrategy,
	})
	return s
}

func requireStrategyID(params map[string]any) error {
	if strings.TrimSpace(paramString(params, models.ParamStrategyID)) == "" {
		return fmt.Errorf("%s is required", models.ParamStrategyID)
	}
	return nil
}

// StartStrategy initiates and persists a strategy, then queues its execution
func (s *ResearchService) StartStrategy(ctx context.Context, req models.StartStrategyRequest) (models.StrategyStartedResponse, error) {
	approach, err := ParseApproach(string(req.Approach))
	if err != nil {
		return models.StrategyStartedResponse{}, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = utils.GenerateUUID()
	}

	strategy, err := s.pipeline.Initiate(sessionID, req.IdeaTitle, req.IdeaDescription, approach, req.CustomParameters)
	if err != nil {
		return models.StrategyStartedResponse{}, err
	}
	if err := s.repo.Save(ctx, strategy); err != nil {
		return models.StrategyStartedResponse{}, fmt.Errorf("failed to save strategy: %w", err)
	}

	params := map[string]any{
		models.ParamStrategyID: strategy.ID,
	}
	if req.NotifyEmail != "" {
		params[models.ParamNotifyEmail] = req.NotifyEmail
	}

	taskID, err := s.worker.Enqueue(models.TaskKindStrategyExecution, sessionID, params)
	if err != nil {
		return models.StrategyStartedResponse{}, err
	}

	return models.StrategyStartedResponse{
		StrategyID: strategy.ID,
		TaskID:     taskID,
		SessionID:  sessionID,
	}, nil
}

// RunSync initiates and executes a strategy on the caller's goroutine. The
// strategy is returned (and persisted) even when execution fails.
func (s *ResearchService) RunSync(ctx context.Context, req models.StartStrategyRequest) (*models.Strategy, error) {
	approach, err := ParseApproach(string(req.Approach))
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = utils.GenerateUUID()
	}

	strategy, err := s.pipeline.Initiate(sessionID, req.IdeaTitle, req.IdeaDescription, approach, req.CustomParameters)
	if err != nil {
		return nil, err
	}

	progress := func(strategyID, phase string, percent float64) {
		if s.hub != nil {
			s.hub.PublishStrategyProgress("", sessionID, strategyID, phase, percent)
		}
	}

	strategy, execErr := s.pipeline.Execute(ctx, strategy, req.IdeaTitle, req.IdeaDescription, progress)
	s.save(ctx, strategy)
	if execErr != nil {
		return strategy, execErr
	}

	s.deliverReport(ctx, strategy, req.NotifyEmail)
	return strategy, nil
}

// executeStrategy runs a persisted strategy as a StrategyExecution task
func (s *ResearchService) executeStrategy(ctx context.Context, run *TaskRun) (any, error) {
	strategyID := run.Param(models.ParamStrategyID)
	logger := s.logger.With("task_id", run.TaskID, "strategy_id", strategyID)

	strategy, err := s.GetStrategy(context.WithoutCancel(ctx), strategyID)
	if err != nil {
		return nil, err
	}

	progress := func(id, phase string, percent float64) {
		run.ReportProgress(ctx, int(strategyTaskBase+percent/100*strategyTaskSpan), "Phase: "+phase)
		if s.hub != nil {
			s.hub.PublishStrategyProgress(run.TaskID, run.SessionID, id, phase, percent)
		}
	}

	strategy, execErr := s.pipeline.Execute(ctx, strategy, strategy.IdeaTitle, strategy.IdeaDescription, progress)
	s.save(ctx, strategy)
	if execErr != nil {
		logger.Warn("strategy execution failed", "error", execErr)
		return nil, execErr
	}

	run.ReportProgress(ctx, reportTaskProgress, "Preparing report")
	s.deliverReport(ctx, strategy, run.Param(models.ParamNotifyEmail))
	return strategy, nil
}

// deliverReport renders, stores and emails the report. Every step is best
// effort and only logged on failure.
func (s *ResearchService) deliverReport(ctx context.Context, strategy *models.Strategy, notifyEmail string) {
	if s.reports.PDF == nil {
		return
	}
	logger := s.logger.With("strategy_id", strategy.ID)
	ctx = context.WithoutCancel(ctx)

	pdfData, err := s.reports.PDF.GenerateStrategyPDF(strategy)
	if err != nil {
		logger.Warn("failed to render strategy report", "error", err)
		return
	}

	if s.reports.Storage != nil {
		key, err := s.reports.Storage.UploadReport(ctx, strategy.SessionID, strategy.ID, bytes.NewReader(pdfData), "application/pdf")
		if err != nil {
			logger.Warn("failed to store strategy report", "error", err)
		} else {
			strategy.ReportURL = s.reports.Storage.GetFileURL(key)
			s.save(ctx, strategy)
		}
	}

	if notifyEmail != "" && s.reports.Mailer != nil {
		if err := s.reports.Mailer.SendStrategyReport(notifyEmail, strategy, strategy.ReportURL, pdfData); err != nil {
			logger.Warn("failed to email strategy report", "error", err)
			return
		}
		logger.Info("strategy report emailed", "to", notifyEmail)
	}
}

func (s *ResearchService) save(ctx context.Context, strategy *models.Strategy) {
	if err := s.repo.Save(context.WithoutCancel(ctx), strategy); err != nil {
		s.logger.Warn("failed to save strategy", "strategy_id", strategy.ID, "error", err)
	}
}

// GetStrategy loads a persisted strategy
func (s *ResearchService) GetStrategy(ctx context.Context, strategyID string) (*models.Strategy, error) {
	strategy, err := s.repo.Get(ctx, strategyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, strategyID)
		}
		return nil, err
	}
	return strategy, nil
}

// ListSessionStrategies returns the strategies created in a session
func (s *ResearchService) ListSessionStrategies(ctx context.Context, sessionID string) ([]*models.Strategy, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// OpenReport returns the stored PDF report of a strategy
func (s *ResearchService) OpenReport(ctx context.Context, strategyID string) (io.ReadCloser, string, error) {
	strategy, err := s.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, "", err
	}
	if s.reports.Storage == nil || strategy.ReportURL == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrReportUnavailable, strategyID)
	}
	return s.reports.Storage.GetObject(ctx, ReportKey(strategy.SessionID, strategy.ID))
}

// NormalizeResearchType maps research type spellings onto the known types.
// Unknown types fall back to quick validation.
func NormalizeResearchType(researchType string) string {
	normalized := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(researchType))
	switch normalized {
	case "deepdive", "marketdeepdive", "market":
		return ResearchTypeDeepDive
	case "launch", "launchstrategy":
		return ResearchTypeLaunch
	default:
		return ResearchTypeQuick
	}
}

// EnqueueResearchWorkflow queues the analysis tasks of a research type in order
func (s *ResearchService) EnqueueResearchWorkflow(req models.StartWorkflowRequest) (models.WorkflowResponse, error) {
	researchType := NormalizeResearchType(req.ResearchType)
	params := map[string]any{
		models.ParamIdeaTitle:       req.IdeaTitle,
		models.ParamIdeaDescription: req.IdeaDescription,
		models.ParamResearchType:    researchType,
	}
	if req.UserGoals != "" {
		params[models.ParamUserGoals] = req.UserGoals
	}

	response := models.WorkflowResponse{
		SessionID:    req.SessionID,
		ResearchType: researchType,
		TaskIDs:      make([]string, 0, len(workflowKinds[researchType])),
	}
	for _, kind := range workflowKinds[researchType] {
		taskID, err := s.worker.Enqueue(kind, req.SessionID, params)
		if err != nil {
			return response, err
		}
		response.TaskIDs = append(response.TaskIDs, taskID)
	}

	s.logger.Info("research workflow enqueued", "session_id", req.SessionID, "research_type", researchType, "tasks", len(response.TaskIDs))
	return response, nil
}

// TaskResult returns the result of a Completed task
func (s *ResearchService) TaskResult(taskID string) (any, error) {
	state, ok := s.worker.GetStatus(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	switch state.Status {
	case models.TaskStatusCompleted:
		return state.Result, nil
	case models.TaskStatusCancelled:
		return nil, fmt.Errorf("%w: %s", ErrTaskCancelled, taskID)
	case models.TaskStatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrTaskFailed, state.ErrorMessage)
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrTaskNotCompleted, taskID, state.Status)
	}
}

// SessionTasks returns the session's task snapshots and their summary
func (s *ResearchService) SessionTasks(sessionID string) models.SessionTasksResponse {
	states := s.worker.ListSessionTasks(sessionID)
	now := time.Now()

	tasks := make([]models.StatusResponse, 0, len(states))
	for _, state := range states {
		tasks = append(tasks, NewStatusResponse(state, now))
	}
	return models.SessionTasksResponse{
		SessionID: sessionID,
		Summary:   SummarizeSession(states),
		Tasks:     tasks,
	}
}

// NewStatusResponse converts a task state into its API snapshot
func NewStatusResponse(state models.TaskState, now time.Time) models.StatusResponse {
	response := models.StatusResponse{
		TaskID:         state.TaskID,
		SessionID:      state.SessionID,
		Kind:           state.Kind,
		Status:         state.Status,
		Progress:       state.Progress,
		Message:        state.Message,
		ElapsedSeconds: utils.ElapsedSeconds(state.StartedAt, state.CompletedAt, now),
		Error:          state.ErrorMessage,
	}
	if state.Status == models.TaskStatusCompleted {
		response.Result = state.Result
	}
	return response
}

// SummarizeSession counts a session's tasks by status and derives the session
// status: Completed once everything is terminal and something completed, Failed
// when a task failed and nothing is processing.
func SummarizeSession(states []models.TaskState) models.SessionSummary {
	summary := models.SessionSummary{Total: len(states)}
	for _, state := range states {
		switch state.Status {
		case models.TaskStatusQueued:
			summary.Queued++
		case models.TaskStatusProcessing:
			summary.Processing++
		case models.TaskStatusCompleted:
			summary.Completed++
		case models.TaskStatusFailed:
			summary.Failed++
		case models.TaskStatusCancelled:
			summary.Cancelled++
		}
	}

	allTerminal := summary.Queued == 0 && summary.Processing == 0
	switch {
	case summary.Total == 0:
		summary.Status = "Empty"
	case allTerminal && summary.Completed > 0:
		summary.Status = string(models.TaskStatusCompleted)
	case summary.Failed > 0 && summary.Processing == 0:
		summary.Status = string(models.TaskStatusFailed)
	case allTerminal:
		summary.Status = string(models.TaskStatusCancelled)
	case summary.Processing > 0 || summary.Completed > 0 || summary.Failed > 0:
		summary.Status = string(models.TaskStatusProcessing)
	default:
		summary.Status = string(models.TaskStatusQueued)
	}
	return summary
}
