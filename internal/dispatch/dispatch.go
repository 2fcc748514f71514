// Package dispatch runs fire-and-forget background work.
//
// The orchestrator and the API server hand off non-critical side effects
// here: persisting a session's best solution to memory and recording
// analytics. A failed or panicking task is logged and dropped. Nothing
// in the request path waits on a dispatched task.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/AP2611/Chakra-final/internal/logging"
)

// Task is a unit of background work. The context is the dispatcher's
// own context, not the request's, so tasks outlive the request that
// submitted them.
type Task func(ctx context.Context) error

// Dispatcher executes submitted tasks on their own goroutines.
// It is safe for concurrent use.
type Dispatcher struct {
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a Dispatcher. If logger is nil, a no-op logger
// is used.
func NewDispatcher(logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit schedules fn to run in the background. The name identifies the
// task in logs. Submit never blocks and returns false only after the
// dispatcher has been closed.
func (d *Dispatcher) Submit(name string, fn Task) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("task rejected, dispatcher closed", "task", name)
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.run(name, fn)
	return true
}

func (d *Dispatcher) run(name string, fn Task) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("background task panicked", "task", name, "panic", fmt.Sprint(r))
		}
	}()

	if err := fn(d.ctx); err != nil {
		d.logger.Warn("background task failed", "task", name, "error", err)
		return
	}
	d.logger.Debug("background task completed", "task", name)
}

// Wait blocks until all submitted tasks have finished. It does not
// prevent new submissions; callers that want a full stop use Close.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels the dispatcher context, rejects further submissions,
// and waits for in-flight tasks to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
