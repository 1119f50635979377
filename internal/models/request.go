package models

// EnqueueTaskRequest represents the request to enqueue a single research task
type EnqueueTaskRequest struct {
	Kind       TaskKind       `json:"kind" binding:"required"`
	SessionID  string         `json:"sessionId" binding:"required"`
	Parameters map[string]any `json:"parameters"`
}

// TaskResponse represents the response when creating a task
type TaskResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"` // "Queued", "Processing", "Completed", "Failed", "Cancelled"
}

// StatusResponse represents the response when checking task status
type StatusResponse struct {
	TaskID         string     `json:"taskId"`
	SessionID      string     `json:"sessionId"`
	Kind           TaskKind   `json:"kind"`
	Status         TaskStatus `json:"status"`
	Progress       int        `json:"progress"`
	Message        string     `json:"message,omitempty"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
	Result         any        `json:"result,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// StartWorkflowRequest represents the request to enqueue a research workflow
type StartWorkflowRequest struct {
	SessionID       string `json:"sessionId" binding:"required"`
	IdeaTitle       string `json:"ideaTitle" binding:"required"`
	IdeaDescription string `json:"ideaDescription" binding:"required"`
	ResearchType    string `json:"researchType"` // quick, deep-dive, launch (default: quick)
	UserGoals       string `json:"userGoals"`
}

// WorkflowResponse represents the response when a workflow was enqueued
type WorkflowResponse struct {
	SessionID    string   `json:"sessionId"`
	ResearchType string   `json:"researchType"`
	TaskIDs      []string `json:"taskIds"`
}

// StartStrategyRequest represents the request to start a strategy run
type StartStrategyRequest struct {
	SessionID        string         `json:"sessionId"` // Optional, generated when empty
	IdeaTitle        string         `json:"ideaTitle" binding:"required"`
	IdeaDescription  string         `json:"ideaDescription" binding:"required"`
	Approach         Approach       `json:"approach" binding:"required"`
	NotifyEmail      string         `json:"notifyEmail,omitempty" binding:"omitempty,email"`
	CustomParameters map[string]any `json:"customParameters,omitempty"`
}

// StrategyStartedResponse represents the response when a strategy run was queued
type StrategyStartedResponse struct {
	StrategyID string `json:"strategyId"`
	TaskID     string `json:"taskId"`
	SessionID  string `json:"sessionId"`
}

// SessionTasksResponse lists the tasks of one session in enqueue order
type SessionTasksResponse struct {
	SessionID string           `json:"sessionId"`
	Summary   SessionSummary   `json:"summary"`
	Tasks     []StatusResponse `json:"tasks"`
}

// SessionSummary aggregates the task statuses of a session
type SessionSummary struct {
	Status     string `json:"status"` // Queued, Processing, Completed, Failed, Cancelled, Empty
	Total      int    `json:"total"`
	Queued     int    `json:"queued"`
	Processing int    `json:"processing"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Cancelled  int    `json:"cancelled"`
}

// TokenRequest represents the request to issue a development token
type TokenRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// TokenResponse represents an issued token
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}
