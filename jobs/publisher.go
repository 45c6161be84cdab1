package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/semchie/sahajjo-messenger-bot/messenger"
)

// TaskType names what a worker does with a task.
type TaskType string

const (
	TaskSendMessage       TaskType = "send_message"
	TaskSetPersistentMenu TaskType = "set_persistent_menu"
)

var (
	// ErrQueueFull is returned when no slot is left in the dispatch queue.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrStopped is returned for tasks published after Stop.
	ErrStopped = errors.New("dispatcher is stopped")
)

// Task is one outbound platform call waiting for a worker.
type Task struct {
	ID         string             `json:"id"`
	Type       TaskType           `json:"type"`
	SenderID   string             `json:"sender_id"`
	Response   messenger.Response `json:"response"`
	EnqueuedAt time.Time          `json:"enqueued_at"`

	result *DeliveryResult
}

// Send queues resp for delivery to senderID and returns without waiting.
func (d *Dispatcher) Send(senderID string, resp messenger.Response) *DeliveryResult {
	return d.publish(Task{Type: TaskSendMessage, SenderID: senderID, Response: resp})
}

// Provision queues the persistent menu installation for senderID.
func (d *Dispatcher) Provision(senderID string) *DeliveryResult {
	return d.publish(Task{Type: TaskSetPersistentMenu, SenderID: senderID})
}

// publish never blocks: a full queue fails the task immediately so the
// webhook acknowledgement is not held up.
func (d *Dispatcher) publish(task Task) *DeliveryResult {
	task.ID = uuid.NewString()
	task.EnqueuedAt = time.Now()
	task.result = newResult(task.ID)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		task.result.complete(ErrStopped)
		return task.result
	}

	select {
	case d.tasks <- task:
		d.metrics.SetQueueDepth(len(d.tasks))
		d.logger.Debug("task queued",
			zap.String("task_id", task.ID),
			zap.String("type", string(task.Type)),
			zap.String("sender_id", task.SenderID),
		)
	default:
		d.logger.Warn("dispatch queue full, dropping task",
			zap.String("task_id", task.ID),
			zap.String("type", string(task.Type)),
			zap.String("sender_id", task.SenderID),
		)
		d.metrics.DeliveryFinished(string(task.Type), "dropped", 0)
		task.result.complete(ErrQueueFull)
	}
	return task.result
}
