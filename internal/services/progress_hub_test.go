package services

import (
	"context"
	"idea-research/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, events <-chan models.ProgressEvent) models.ProgressEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return models.ProgressEvent{}
	}
}

func TestProgressHub_RoutesTaskEventsToTaskAndSession(t *testing.T) {
	store := NewTaskStatusStore()
	store.Create(newDescriptor("task-1", "session-1", models.TaskKindMarketAnalysis))
	hub := NewProgressHub(store, nil)

	byTask, unsubscribeTask := hub.Subscribe("task-1")
	defer unsubscribeTask()
	bySession, unsubscribeSession := hub.Subscribe("session-1")
	defer unsubscribeSession()
	other, unsubscribeOther := hub.Subscribe("session-2")
	defer unsubscribeOther()
	assert.Equal(t, 3, hub.SubscriberCount())

	require.NoError(t, hub.OnProgress(context.Background(), "task-1", 30, "Processing", "Analyzing data"))

	for _, events := range []<-chan models.ProgressEvent{byTask, bySession} {
		event := receive(t, events)
		assert.Equal(t, models.EventTaskProgress, event.Type)
		assert.Equal(t, "task-1", event.TaskID)
		assert.Equal(t, "session-1", event.SessionID)
		assert.Equal(t, 30.0, event.Progress)
		assert.Equal(t, "Analyzing data", event.Message)
		assert.False(t, event.Timestamp.IsZero())
	}
	assert.Empty(t, other)
}

func TestProgressHub_TerminalEvents(t *testing.T) {
	store := NewTaskStatusStore()
	store.Create(newDescriptor("task-1", "session-1", models.TaskKindMarketAnalysis))
	require.True(t, store.MarkProcessing("task-1", 10, ""))
	_, _ = store.UpdateProgress("task-1", 45, "")
	hub := NewProgressHub(store, nil)

	events, unsubscribe := hub.Subscribe("session-1")
	defer unsubscribe()

	require.NoError(t, hub.OnFailed(context.Background(), "task-1", "boom"))
	event := receive(t, events)
	assert.Equal(t, models.EventTaskFailed, event.Type)
	assert.Equal(t, "boom", event.Error)
	assert.Equal(t, 45.0, event.Progress)

	require.NoError(t, hub.OnCompleted(context.Background(), "task-1", "result"))
	event = receive(t, events)
	assert.Equal(t, models.EventTaskCompleted, event.Type)
	assert.Equal(t, "result", event.Result)
	assert.Equal(t, 100.0, event.Progress)
}

func TestProgressHub_StrategyProgress(t *testing.T) {
	hub := NewProgressHub(nil, nil)
	events, unsubscribe := hub.Subscribe("session-9")
	defer unsubscribe()

	hub.PublishStrategyProgress("", "session-9", "strategy-1", models.PhaseStrategicOptions, 80)
	event := receive(t, events)
	assert.Equal(t, models.EventStrategyProgress, event.Type)
	assert.Equal(t, "strategy-1", event.StrategyID)
	assert.Equal(t, models.PhaseStrategicOptions, event.Phase)
	assert.Equal(t, 80.0, event.Progress)

	// Without a store task events still reach task subscribers
	byTask, unsubscribeTask := hub.Subscribe("task-x")
	defer unsubscribeTask()
	require.NoError(t, hub.OnFailed(context.Background(), "task-x", "boom"))
	assert.Equal(t, "boom", receive(t, byTask).Error)
}

func TestProgressHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewProgressHub(nil, nil)
	events, unsubscribe := hub.Subscribe("busy")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+50; i++ {
			hub.Publish(models.ProgressEvent{Type: models.EventTaskProgress, TaskID: "busy", Progress: float64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, events, subscriberBuffer)
	assert.Equal(t, 0.0, receive(t, events).Progress)
}

func TestProgressHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewProgressHub(nil, nil)
	events, unsubscribe := hub.Subscribe("topic")

	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
	assert.Zero(t, hub.SubscriberCount())

	assert.NotPanics(t, func() {
		hub.Publish(models.ProgressEvent{TaskID: "topic"})
	})
}
