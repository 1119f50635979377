package services

import (
	"context"
	"idea-research/internal/models"
	"log/slog"
	"sync"
	"time"
)

const subscriberBuffer = 100

var _ NotificationSink = (*ProgressHub)(nil)

// ProgressHub broadcasts task and strategy progress to live subscribers.
// Subscribers register for a topic, which is either a task id or a session id.
// Slow subscribers miss events rather than blocking the worker.
type ProgressHub struct {
	store       *TaskStatusStore
	subscribers map[string]map[int]chan models.ProgressEvent
	nextID      int
	mutex       sync.RWMutex
	logger      *slog.Logger
}

// NewProgressHub creates a hub. The store resolves a task's session so task
// events also reach session subscribers.
func NewProgressHub(store *TaskStatusStore, logger *slog.Logger) *ProgressHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHub{
		store:       store,
		subscribers: make(map[string]map[int]chan models.ProgressEvent),
		logger:      logger.With("component", "progress_hub"),
	}
}

// Subscribe returns a channel of events for the topic and a function that
// removes the subscription and closes the channel
func (h *ProgressHub) Subscribe(topic string) (<-chan models.ProgressEvent, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan models.ProgressEvent, subscriberBuffer)
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[int]chan models.ProgressEvent)
	}
	h.subscribers[topic][id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mutex.Lock()
			defer h.mutex.Unlock()
			delete(h.subscribers[topic], id)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
			close(ch)
		})
	}
	return ch, unsubscribe
}

// SubscriberCount returns the number of open subscriptions
func (h *ProgressHub) SubscriberCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}

// Publish delivers an event to subscribers of its task and of its session
func (h *ProgressHub) Publish(event models.ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for _, topic := range []string{event.TaskID, event.SessionID} {
		if topic == "" {
			continue
		}
		for _, ch := range h.subscribers[topic] {
			select {
			case ch <- event:
			default:
				h.logger.Debug("subscriber buffer full, dropping event", "topic", topic, "type", event.Type)
			}
		}
	}
}

// PublishStrategyProgress reports a pipeline checkpoint for a strategy run by a task
func (h *ProgressHub) PublishStrategyProgress(taskID, sessionID, strategyID, phase string, progress float64) {
	h.Publish(models.ProgressEvent{
		Type:       models.EventStrategyProgress,
		TaskID:     taskID,
		SessionID:  sessionID,
		StrategyID: strategyID,
		Phase:      phase,
		Progress:   progress,
	})
}

func (h *ProgressHub) taskState(taskID string) models.TaskState {
	if h.store == nil {
		return models.TaskState{}
	}
	state, _ := h.store.Get(taskID)
	return state
}

func (h *ProgressHub) OnProgress(_ context.Context, taskID string, progress int, status string, message string) error {
	h.Publish(models.ProgressEvent{
		Type:      models.EventTaskProgress,
		TaskID:    taskID,
		SessionID: h.taskState(taskID).SessionID,
		Status:    status,
		Progress:  float64(progress),
		Message:   message,
	})
	return nil
}

func (h *ProgressHub) OnCompleted(_ context.Context, taskID string, result any) error {
	h.Publish(models.ProgressEvent{
		Type:      models.EventTaskCompleted,
		TaskID:    taskID,
		SessionID: h.taskState(taskID).SessionID,
		Status:    string(models.TaskStatusCompleted),
		Progress:  100,
		Result:    result,
	})
	return nil
}

func (h *ProgressHub) OnFailed(_ context.Context, taskID string, errorMessage string) error {
	state := h.taskState(taskID)
	h.Publish(models.ProgressEvent{
		Type:      models.EventTaskFailed,
		TaskID:    taskID,
		SessionID: state.SessionID,
		Status:    string(models.TaskStatusFailed),
		Progress:  float64(state.Progress),
		Error:     errorMessage,
	})
	return nil
}
