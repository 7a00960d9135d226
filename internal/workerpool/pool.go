// Package workerpool runs CPU-bound scoring subtasks on a fixed set of workers.
//
// Callers block on a free worker instead of spawning their own goroutines, so
// the number of busy workers never exceeds the configured size regardless of
// request fan-in. Every task carries a deadline; when it passes the caller gets
// ErrTimeout and the worker is returned to the idle set immediately. The
// abandoned computation keeps running to completion in the background and its
// result is dropped: handlers are pure functions, so there is nothing to undo.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTaskTimeout = 10 * time.Second

var (
	ErrTimeout          = errors.New("worker task timed out")
	ErrTaskPanic        = errors.New("worker task panicked")
	ErrClosed           = errors.New("worker pool is closed")
	ErrUnknownOperation = errors.New("unknown worker operation")
)

// Operation names the kind of work a task performs.
type Operation string

const (
	OpEmbedding  Operation = "embedding"
	OpSimilarity Operation = "similarity"
)

// Handler executes one task. ctx expires at the task deadline.
type Handler func(ctx context.Context, payload any) (any, error)

type Config struct {
	Workers     int
	TaskTimeout time.Duration
}

// Task is a unit of work claimed by exactly one worker.
type Task struct {
	ID      string
	Op      Operation
	Payload any

	done chan taskResult
}

type taskResult struct {
	value any
	err   error
}

const (
	stateIdle int32 = iota
	stateBusy
)

type worker struct {
	id    int
	state atomic.Int32
}

// Stats is a point-in-time view of pool activity.
type Stats struct {
	Workers   int
	Busy      int64
	Peak      int64
	Submitted int64
	Completed int64
	Failed    int64
	TimedOut  int64
}

type Pool struct {
	cfg      Config
	handlers map[Operation]Handler
	idle     chan *worker
	logger   *zap.Logger

	closed    chan struct{}
	closeOnce sync.Once

	busy      atomic.Int64
	peak      atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	timedOut  atomic.Int64
}

// New starts a pool. Workers defaults to runtime.NumCPU(), TaskTimeout to 10s.
func New(cfg Config, handlers map[Operation]Handler, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		cfg:      cfg,
		handlers: make(map[Operation]Handler, len(handlers)),
		idle:     make(chan *worker, cfg.Workers),
		logger:   logger,
		closed:   make(chan struct{}),
	}
	for op, h := range handlers {
		p.handlers[op] = h
	}
	for i := 0; i < cfg.Workers; i++ {
		p.idle <- &worker{id: i}
	}

	logger.Debug("worker pool started",
		zap.Int("workers", cfg.Workers),
		zap.Duration("task_timeout", cfg.TaskTimeout),
	)
	return p
}

// Submit runs payload through the handler registered for op on the next idle
// worker and waits for its result, the task deadline, or ctx.
func (p *Pool) Submit(ctx context.Context, op Operation, payload any) (any, error) {
	handler, ok := p.handlers[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	select {
	case <-p.closed:
		return nil, ErrClosed
	default:
	}

	var w *worker
	select {
	case w = <-p.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrClosed
	}

	task := &Task{ID: uuid.NewString(), Op: op, Payload: payload, done: make(chan taskResult, 1)}
	p.claim(w)
	defer p.release(w)

	taskCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskTimeout)
	defer cancel()

	go p.execute(taskCtx, w, handler, task)

	select {
	case res := <-task.done:
		if res.err != nil {
			p.failed.Add(1)
			return nil, res.err
		}
		p.completed.Add(1)
		return res.value, nil
	case <-taskCtx.Done():
		if err := ctx.Err(); err != nil {
			p.failed.Add(1)
			return nil, err
		}
		p.timedOut.Add(1)
		p.logger.Warn("worker task timed out",
			zap.String("task_id", task.ID),
			zap.String("operation", string(op)),
			zap.Int("worker", w.id),
			zap.Duration("timeout", p.cfg.TaskTimeout),
		)
		return nil, fmt.Errorf("%w: %s task %s after %s", ErrTimeout, op, task.ID, p.cfg.TaskTimeout)
	}
}

func (p *Pool) execute(ctx context.Context, w *worker, handler Handler, task *Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				zap.String("task_id", task.ID),
				zap.String("operation", string(task.Op)),
				zap.Int("worker", w.id),
				zap.Any("panic", r),
			)
			task.done <- taskResult{err: fmt.Errorf("%w: %v", ErrTaskPanic, r)}
		}
	}()

	value, err := handler(ctx, task.Payload)
	task.done <- taskResult{value: value, err: err}
}

func (p *Pool) claim(w *worker) {
	if !w.state.CompareAndSwap(stateIdle, stateBusy) {
		panic(fmt.Sprintf("workerpool: worker %d dispatched while busy", w.id))
	}
	p.submitted.Add(1)
	busy := p.busy.Add(1)
	for {
		peak := p.peak.Load()
		if busy <= peak || p.peak.CompareAndSwap(peak, busy) {
			return
		}
	}
}

func (p *Pool) release(w *worker) {
	w.state.Store(stateIdle)
	p.busy.Add(-1)
	p.idle <- w
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.cfg.Workers,
		Busy:      p.busy.Load(),
		Peak:      p.peak.Load(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		TimedOut:  p.timedOut.Load(),
	}
}

// Size is the configured number of workers.
func (p *Pool) Size() int { return p.cfg.Workers }

// Close rejects new submissions and wakes callers waiting for a worker.
// Tasks already running finish normally.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}
