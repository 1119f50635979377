package services

import (
	"context"
	"idea-research/internal/models"
	"sync"
	"time"
)

// TaskQueue is a FIFO of pending task descriptors, safe for many producers
// and a single consumer
type TaskQueue struct {
	items  []models.TaskDescriptor
	mutex  sync.Mutex
	signal chan struct{}
}

// NewTaskQueue creates an empty queue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a descriptor and wakes the consumer
func (q *TaskQueue) Enqueue(desc models.TaskDescriptor) {
	q.mutex.Lock()
	q.items = append(q.items, desc)
	q.mutex.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue removes the oldest descriptor without blocking
func (q *TaskQueue) TryDequeue() (models.TaskDescriptor, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.items) == 0 {
		return models.TaskDescriptor{}, false
	}

	desc := q.items[0]
	q.items[0] = models.TaskDescriptor{}
	q.items = q.items[1:]
	return desc, true
}

// Dequeue blocks until a descriptor is available or ctx is done. While the
// queue is empty it re-checks at least every idleWait.
func (q *TaskQueue) Dequeue(ctx context.Context, idleWait time.Duration) (models.TaskDescriptor, error) {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		if desc, ok := q.TryDequeue(); ok {
			return desc, nil
		}

		select {
		case <-ctx.Done():
			return models.TaskDescriptor{}, ctx.Err()
		case <-q.signal:
		case <-timer.C:
			timer.Reset(idleWait)
		}
	}
}

// Len returns the number of pending descriptors
func (q *TaskQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}
