// Package jobs runs outbound platform calls on a pool of background
// workers so the webhook can acknowledge a delivery without waiting on them.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/semchie/sahajjo-messenger-bot/messenger"
	"github.com/semchie/sahajjo-messenger-bot/metrics"
	"github.com/semchie/sahajjo-messenger-bot/storage"
)

// Platform is the subset of the Send API the workers call.
type Platform interface {
	SendMessage(ctx context.Context, psid string, resp messenger.Response) (messenger.SendResult, error)
	SetPersistentMenu(ctx context.Context, psid string, actions []messenger.MenuAction) error
}

// Options tunes the worker pool.
type Options struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Menu        []messenger.MenuAction
}

// Dispatcher owns the dispatch queue and its workers.
type Dispatcher struct {
	platform Platform
	failures storage.FailureLog
	metrics  *metrics.Collector
	logger   *zap.Logger
	opts     Options

	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	started bool
}

// NewDispatcher creates a dispatcher. Call Start to launch the workers.
func NewDispatcher(platform Platform, failures storage.FailureLog, m *metrics.Collector, logger *zap.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 30 * time.Second
	}
	if failures == nil {
		failures = storage.NopFailureLog{}
	}
	return &Dispatcher{
		platform: platform,
		failures: failures,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		tasks:    make(chan Task, opts.QueueSize),
	}
}

// Start launches the workers. It is a no-op when called twice.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
	d.logger.Info("dispatch workers started",
		zap.Int("workers", d.opts.Workers),
		zap.Int("queue_size", d.opts.QueueSize),
	)
}

// Stop refuses new tasks and waits for queued ones to finish or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.tasks)
	started := d.started
	d.mu.Unlock()

	if !started {
		for task := range d.tasks {
			task.result.complete(ErrStopped)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("dispatch workers stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop dispatcher: %w", ctx.Err())
	}
}

// Pending returns the number of queued tasks.
func (d *Dispatcher) Pending() int {
	return len(d.tasks)
}

func (d *Dispatcher) run(worker int) {
	defer d.wg.Done()
	for task := range d.tasks {
		d.metrics.SetQueueDepth(len(d.tasks))
		d.handle(worker, task)
	}
}

func (d *Dispatcher) handle(worker int, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.TaskTimeout)
	defer cancel()

	log := d.logger.With(
		zap.Int("worker", worker),
		zap.String("task_id", task.ID),
		zap.String("type", string(task.Type)),
		zap.String("sender_id", task.SenderID),
	)

	start := time.Now()
	var err error
	switch task.Type {
	case TaskSendMessage:
		var res messenger.SendResult
		res, err = d.platform.SendMessage(ctx, task.SenderID, task.Response)
		if err == nil {
			log = log.With(zap.String("message_id", res.MessageID))
		}
	case TaskSetPersistentMenu:
		err = d.platform.SetPersistentMenu(ctx, task.SenderID, d.opts.Menu)
	default:
		err = fmt.Errorf("unknown task type %q", task.Type)
	}
	elapsed := time.Since(start)

	if err != nil {
		log.Error("delivery failed", zap.Duration("duration", elapsed), zap.Error(err))
		d.metrics.DeliveryFinished(string(task.Type), "failed", elapsed)
		d.recordFailure(task, err)
	} else {
		log.Info("delivered", zap.Duration("duration", elapsed))
		d.metrics.DeliveryFinished(string(task.Type), "ok", elapsed)
	}
	task.result.complete(err)
}

func (d *Dispatcher) recordFailure(task Task, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var payload json.RawMessage
	if task.Type == TaskSendMessage {
		if raw, err := json.Marshal(task.Response); err == nil {
			payload = raw
		}
	}
	f := storage.Failure{
		TaskID:     task.ID,
		Task:       string(task.Type),
		SenderID:   task.SenderID,
		Payload:    payload,
		Error:      cause.Error(),
		OccurredAt: time.Now().UTC(),
	}
	if err := d.failures.Record(ctx, f); err != nil {
		d.logger.Warn("could not record delivery failure", zap.String("task_id", task.ID), zap.Error(err))
	}
}
