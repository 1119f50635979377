package api

import (
	"errors"
	"idea-research/internal/models"
	"idea-research/internal/services"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	worker     *services.WorkflowWorker
	research   *services.ResearchService
	hub        *services.ProgressHub
	jwtService *services.JWTService
	devTokens  bool
	metrics    http.Handler
	storageDir string
	logger     *slog.Logger
}

// NewHandlers creates a new handlers instance. hub, jwtService and metrics may
// be nil; storageDir is served under /storage when set. devTokens enables the
// unauthenticated token endpoint and only applies when jwtService is set.
func NewHandlers(
	worker *services.WorkflowWorker,
	research *services.ResearchService,
	hub *services.ProgressHub,
	jwtService *services.JWTService,
	devTokens bool,
	metrics http.Handler,
	storageDir string,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		worker:     worker,
		research:   research,
		hub:        hub,
		jwtService: jwtService,
		devTokens:  devTokens && jwtService != nil,
		metrics:    metrics,
		storageDir: storageDir,
		logger:     logger.With("component", "api"),
	}
}

// writeError maps service errors onto HTTP status codes
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case services.IsEnqueueError(err),
		errors.Is(err, services.ErrUnknownApproach):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrStrategyNotFound),
		errors.Is(err, services.ErrReportUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrTaskNotCompleted),
		errors.Is(err, services.ErrTaskCancelled),
		errors.Is(err, services.ErrTaskFailed):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// IssueTokenHandler handles POST /api/auth/token
// Development only: it signs a token for any user id
func (h *Handlers) IssueTokenHandler(c *gin.Context) {
	if !h.devTokens {
		c.JSON(http.StatusNotFound, gin.H{"error": "token issuing is disabled"})
		return
	}

	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.jwtService.GenerateToken(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Token:     token,
		ExpiresIn: int64(h.jwtService.TTL() / time.Second),
	})
}

// ListApproachesHandler handles GET /api/research/approaches
func (h *Handlers) ListApproachesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"approaches": services.ListApproaches()})
}

// EnqueueTaskHandler handles POST /api/research/tasks
func (h *Handlers) EnqueueTaskHandler(c *gin.Context) {
	var req models.EnqueueTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID, err := h.worker.Enqueue(req.Kind, req.SessionID, req.Parameters)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.TaskResponse{
		TaskID: taskID,
		Status: string(models.TaskStatusQueued),
	})
}

// GetTaskStatusHandler handles GET /api/research/tasks/:taskId
func (h *Handlers) GetTaskStatusHandler(c *gin.Context) {
	taskID := c.Param("taskId")

	state, ok := h.worker.GetStatus(taskID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, services.NewStatusResponse(state, time.Now()))
}

// CancelTaskHandler handles POST /api/research/tasks/:taskId/cancel
func (h *Handlers) CancelTaskHandler(c *gin.Context) {
	state, err := h.worker.Cancel(c.Param("taskId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, services.NewStatusResponse(state, time.Now()))
}

// GetTaskResultHandler handles GET /api/research/tasks/:taskId/result
func (h *Handlers) GetTaskResultHandler(c *gin.Context) {
	result, err := h.research.TaskResult(c.Param("taskId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSessionTasksHandler handles GET /api/research/sessions/:sessionId/tasks
func (h *Handlers) GetSessionTasksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.research.SessionTasks(c.Param("sessionId")))
}

// GetSessionStrategiesHandler handles GET /api/research/sessions/:sessionId/strategies
func (h *Handlers) GetSessionStrategiesHandler(c *gin.Context) {
	strategies, err := h.research.ListSessionStrategies(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if strategies == nil {
		strategies = []*models.Strategy{}
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": c.Param("sessionId"), "strategies": strategies})
}

// StartWorkflowHandler handles POST /api/research/workflows
func (h *Handlers) StartWorkflowHandler(c *gin.Context) {
	var req models.StartWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.research.EnqueueResearchWorkflow(req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response)
}

// StartStrategyHandler handles POST /api/research/strategies
func (h *Handlers) StartStrategyHandler(c *gin.Context) {
	var req models.StartStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.research.StartStrategy(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response)
}

// RunStrategySyncHandler handles POST /api/research/strategies/run-sync
// Runs the whole pipeline before responding
func (h *Handlers) RunStrategySyncHandler(c *gin.Context) {
	var req models.StartStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strategy, err := h.research.RunSync(c.Request.Context(), req)
	if err != nil {
		if strategy == nil {
			writeError(c, err)
			return
		}
		// The failed strategy still carries the error and the partial insights
		c.JSON(http.StatusBadGateway, strategy)
		return
	}

	c.JSON(http.StatusOK, strategy)
}

// GetStrategyHandler handles GET /api/research/strategies/:strategyId
func (h *Handlers) GetStrategyHandler(c *gin.Context) {
	strategy, err := h.research.GetStrategy(c.Request.Context(), c.Param("strategyId"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, strategy)
}

// GetStrategyReportHandler handles GET /api/research/strategies/:strategyId/report
func (h *Handlers) GetStrategyReportHandler(c *gin.Context) {
	reader, contentType, err := h.research.OpenReport(c.Request.Context(), c.Param("strategyId"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "inline; filename=\"strategy-"+c.Param("strategyId")+".pdf\"")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.logger.Warn("failed to stream report", "strategy_id", c.Param("strategyId"), "error", err)
	}
}
