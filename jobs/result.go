package jobs

import (
	"context"
	"sync"
)

// DeliveryResult is the eventual outcome of a dispatched task. Callers may
// drop it; the dispatcher logs and records failures either way.
type DeliveryResult struct {
	TaskID string

	done chan struct{}
	once sync.Once
	err  error
}

func newResult(taskID string) *DeliveryResult {
	return &DeliveryResult{TaskID: taskID, done: make(chan struct{})}
}

// Resolved returns a result that is already complete with err.
func Resolved(taskID string, err error) *DeliveryResult {
	r := newResult(taskID)
	r.complete(err)
	return r
}

func (r *DeliveryResult) complete(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed once the task finished.
func (r *DeliveryResult) Done() <-chan struct{} {
	return r.done
}

// Err returns the task error. It is nil while the task is still running.
func (r *DeliveryResult) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the task finished or ctx is done.
func (r *DeliveryResult) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
