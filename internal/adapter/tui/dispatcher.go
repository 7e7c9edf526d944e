package tui

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Command is one unit of work against the session controller.
type Command func(ctx context.Context)

// Dispatcher runs commands one at a time in submission order on its own
// goroutine. Submit never blocks, so the UI stays responsive while a command
// waits for the engine.
type Dispatcher struct {
	logger *zap.Logger

	mu     sync.Mutex
	queue  []Command
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Submit queues cmd. It reports false once the dispatcher is closed.
func (d *Dispatcher) Submit(cmd Command) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, cmd)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting commands. Queued commands still run unless ctx ends.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Run executes commands until ctx ends or the dispatcher is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		cmd, ok, closed := d.next()
		if ok {
			if ctx.Err() != nil {
				return
			}
			cmd(ctx)
			continue
		}
		if closed {
			d.logger.Debug("dispatcher drained")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) next() (Command, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false, d.closed
	}
	cmd := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return cmd, true, d.closed
}
