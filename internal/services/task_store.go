package services

import (
	"idea-research/internal/models"
	"sync"
	"time"
)

// TaskStatusStore keeps the lifecycle record of every known task.
// Transitions are compare-and-set: a write that does not match the current
// status is refused, so terminal states are never overwritten.
type TaskStatusStore struct {
	tasks    map[string]*models.TaskState
	sessions map[string][]string // session id -> task ids in enqueue order
	mutex    sync.RWMutex
}

// NewTaskStatusStore creates an empty store
func NewTaskStatusStore() *TaskStatusStore {
	return &TaskStatusStore{
		tasks:    make(map[string]*models.TaskState),
		sessions: make(map[string][]string),
	}
}

// Create inserts a Queued record for the descriptor
func (s *TaskStatusStore) Create(desc models.TaskDescriptor) models.TaskState {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	state := &models.TaskState{
		TaskID:    desc.TaskID,
		SessionID: desc.SessionID,
		Kind:      desc.Kind,
		Status:    models.TaskStatusQueued,
		Progress:  0,
		CreatedAt: desc.CreatedAt,
	}
	s.tasks[desc.TaskID] = state
	s.sessions[desc.SessionID] = append(s.sessions[desc.SessionID], desc.TaskID)
	return *state
}

// Get returns a snapshot of the task's state
func (s *TaskStatusStore) Get(taskID string) (models.TaskState, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	state, exists := s.tasks[taskID]
	if !exists {
		return models.TaskState{}, false
	}
	return *state, true
}

// MarkProcessing moves a Queued task to Processing. It returns false if the
// task is unknown or no longer Queued (e.g. it was cancelled while waiting).
func (s *TaskStatusStore) MarkProcessing(taskID string, progress int, message string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	state, exists := s.tasks[taskID]
	if !exists || state.Status != models.TaskStatusQueued {
		return false
	}

	now := time.Now()
	state.Status = models.TaskStatusProcessing
	state.StartedAt = &now
	state.Progress = max(state.Progress, clampProgress(progress))
	state.Message = message
	return true
}

// UpdateProgress raises the progress of a Processing task. Progress never
// decreases; a lower value only updates the message.
func (s *TaskStatusStore) UpdateProgress(taskID string, progress int, message string) (int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	state, exists := s.tasks[taskID]
	if !exists || state.Status != models.TaskStatusProcessing {
		return 0, false
	}

	state.Progress = max(state.Progress, clampProgress(progress))
	if message != "" {
		state.Message = message
	}
	return state.Progress, true
}

// Complete records the result of a Processing task
func (s *TaskStatusStore) Complete(taskID string, result any) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	state, exists := s.tasks[taskID]
	if !exists || state.Status != models.TaskStatusProcessing {
		return false
	}

	now := time.Now()
	state.Status = models.TaskStatusCompleted
	state.Progress = 100
	state.Message = "Task completed"
	state.CompletedAt = &now
	state.Result = result
	return true
}

// Fail marks a Processing task as failed. Progress keeps its last value.
func (s *TaskStatusStore) Fail(taskID string, errorMessage string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	state, exists := s.tasks[taskID]
	if !exists || state.Status != models.TaskStatusProcessing {
		return false
	}

	if errorMessage == "" {
		errorMessage = "task failed"
	}

	now := time.Now()
	state.Status = models.TaskStatusFailed
	state.CompletedAt = &now
	state.ErrorMessage = errorMessage
	state.Message = "Task failed"
	return true
}

// Cancel moves a Queued or Processing task to Cancelled. Cancelling a terminal
// task changes nothing. The returned snapshot reflects the state after the call
// and previous is the status before it.
func (s *TaskStatusStore) Cancel(taskID string) (state models.TaskState, previous models.TaskStatus, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, exists := s.tasks[taskID]
	if !exists {
		return models.TaskState{}, "", ErrTaskNotFound
	}

	previous = current.Status
	if current.Status.IsTerminal() {
		return *current, previous, nil
	}

	now := time.Now()
	current.Status = models.TaskStatusCancelled
	current.CompletedAt = &now
	current.Message = "Task cancelled"
	return *current, previous, nil
}

// ListSession returns snapshots of a session's tasks in enqueue order
func (s *TaskStatusStore) ListSession(sessionID string) []models.TaskState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := s.sessions[sessionID]
	states := make([]models.TaskState, 0, len(ids))
	for _, id := range ids {
		if state, exists := s.tasks[id]; exists {
			states = append(states, *state)
		}
	}
	return states
}

// LatestResult returns the result of the most recently enqueued Completed task
// of the given kind within a session
func (s *TaskStatusStore) LatestResult(sessionID string, kind models.TaskKind) (any, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := s.sessions[sessionID]
	for i := len(ids) - 1; i >= 0; i-- {
		state, exists := s.tasks[ids[i]]
		if exists && state.Kind == kind && state.Status == models.TaskStatusCompleted {
			return state.Result, true
		}
	}
	return nil, false
}

// ProcessingSince returns the tasks that have been Processing since before cutoff
func (s *TaskStatusStore) ProcessingSince(cutoff time.Time) []models.TaskState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var stuck []models.TaskState
	for _, state := range s.tasks {
		if state.Status == models.TaskStatusProcessing && state.StartedAt != nil && state.StartedAt.Before(cutoff) {
			stuck = append(stuck, *state)
		}
	}
	return stuck
}

// Prune removes terminal tasks that completed before cutoff and returns how many were removed
func (s *TaskStatusStore) Prune(cutoff time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for id, state := range s.tasks {
		if state.Status.IsTerminal() && state.CompletedAt != nil && state.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}

	for sessionID, ids := range s.sessions {
		kept := ids[:0]
		for _, id := range ids {
			if _, exists := s.tasks[id]; exists {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(s.sessions, sessionID)
			continue
		}
		s.sessions[sessionID] = kept
	}
	return removed
}

// Count returns the number of tracked tasks per status
func (s *TaskStatusStore) Count() map[models.TaskStatus]int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	counts := make(map[models.TaskStatus]int)
	for _, state := range s.tasks {
		counts[state.Status]++
	}
	return counts
}

func clampProgress(progress int) int {
	return min(max(progress, 0), 100)
}
