package models

import "time"

// TaskKind identifies which executor handles a queued task
type TaskKind string

const (
	TaskKindMarketAnalysis        TaskKind = "MarketAnalysis"
	TaskKindCompetitiveAnalysis   TaskKind = "CompetitiveAnalysis"
	TaskKindSwotAnalysis          TaskKind = "SwotAnalysis"
	TaskKindCustomerSegmentation  TaskKind = "CustomerSegmentation"
	TaskKindEnhancedSwotAnalysis  TaskKind = "EnhancedSwotAnalysis"
	TaskKindStrategicImplications TaskKind = "StrategicImplications"
	TaskKindPipelinePhase         TaskKind = "PipelinePhase"
	TaskKindStrategyExecution     TaskKind = "StrategyExecution"
)

// AllTaskKinds lists the closed set of task kinds
var AllTaskKinds = []TaskKind{
	TaskKindMarketAnalysis,
	TaskKindCompetitiveAnalysis,
	TaskKindSwotAnalysis,
	TaskKindCustomerSegmentation,
	TaskKindEnhancedSwotAnalysis,
	TaskKindStrategicImplications,
	TaskKindPipelinePhase,
	TaskKindStrategyExecution,
}

// Valid reports whether k belongs to the closed set of task kinds
func (k TaskKind) Valid() bool {
	for _, known := range AllTaskKinds {
		if k == known {
			return true
		}
	}
	return false
}

// TaskStatus represents the lifecycle status of a task
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "Queued"
	TaskStatusProcessing TaskStatus = "Processing"
	TaskStatusCompleted  TaskStatus = "Completed"
	TaskStatusFailed     TaskStatus = "Failed"
	TaskStatusCancelled  TaskStatus = "Cancelled"
)

// IsTerminal reports whether the status can no longer change
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Parameter keys understood by the executors
const (
	ParamIdeaTitle           = "ideaTitle"
	ParamIdeaDescription     = "ideaDescription"
	ParamTargetMarket        = "targetMarket"
	ParamResearchType        = "researchType"
	ParamUserGoals           = "userGoals"
	ParamApproach            = "approach"
	ParamPhase               = "phase"
	ParamPriorInsights       = "priorInsights"
	ParamStrategyID          = "strategyId"
	ParamNotifyEmail         = "notifyEmail"
	ParamCompetitiveAnalysis = "competitiveAnalysis"
	ParamSwotAnalysis        = "swotAnalysis"
)

// TaskDescriptor identifies one unit of background work. It is immutable once enqueued.
type TaskDescriptor struct {
	TaskID     string         `json:"taskId"`
	SessionID  string         `json:"sessionId"`
	Kind       TaskKind       `json:"kind"`
	Parameters map[string]any `json:"parameters"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TaskState is the mutable lifecycle record of a task, keyed by TaskID.
// Values handed out by the store are snapshots.
type TaskState struct {
	TaskID       string     `json:"taskId"`
	SessionID    string     `json:"sessionId"`
	Kind         TaskKind   `json:"kind"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"` // 0-100
	Message      string     `json:"message,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Result       any        `json:"result,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// Elapsed returns how long the task has been (or was) processing
func (s TaskState) Elapsed(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(*s.StartedAt)
	}
	return now.Sub(*s.StartedAt)
}
