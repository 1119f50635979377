package models

import "time"

// ProgressEventType identifies what a progress event reports
type ProgressEventType string

const (
	EventTaskProgress     ProgressEventType = "task.progress"
	EventTaskCompleted    ProgressEventType = "task.completed"
	EventTaskFailed       ProgressEventType = "task.failed"
	EventStrategyProgress ProgressEventType = "strategy.progress"
)

// ProgressEvent is pushed to websocket subscribers of a task or session
type ProgressEvent struct {
	Type       ProgressEventType `json:"type"`
	TaskID     string            `json:"taskId,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	StrategyID string            `json:"strategyId,omitempty"`
	Phase      string            `json:"phase,omitempty"`
	Status     string            `json:"status,omitempty"`
	Progress   float64           `json:"progress"`
	Message    string            `json:"message,omitempty"`
	Result     any               `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
