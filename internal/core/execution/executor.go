package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/probe"
)

// Outcome is the terminal result of an operation.
type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeTimedOut     Outcome = "timed_out"
	OutcomeLaunchFailed Outcome = "launch_failed"
	OutcomeFailed       Outcome = "failed"
	OutcomeBusy         Outcome = "busy"
	OutcomeCancelled    Outcome = "cancelled"
)

// DefaultPollInterval is used when an operation does not set one.
const DefaultPollInterval = time.Second

var (
	// ErrBusy is returned when an operation of the same class is running.
	ErrBusy = errors.New("another operation of this kind is already running")

	// ErrTimeout is returned when the deadline passes without the probe succeeding.
	ErrTimeout = errors.New("operation did not complete before the deadline")

	// ErrProcessFailed is returned by the exit probe when the launched
	// process exits non-zero. It ends polling.
	ErrProcessFailed = errors.New("process exited with non-zero status")
)

// Operation describes one launch-then-poll run.
type Operation struct {
	// Class groups operations that must not overlap.
	Class string

	Launch Command

	// Trigger runs Launch to completion and requires it to succeed
	// before polling starts.
	Trigger bool

	// Sentinel is removed before launch when set.
	Sentinel string

	// Until is the completion probe. Nil means "the launched process
	// exited with code 0".
	Until probe.Probe

	Interval time.Duration
	Deadline time.Duration
}

// Result is what Execute reports back.
type Result struct {
	Outcome Outcome
	Elapsed time.Duration
	Err     error
}

// Detail returns a human readable reason for non-completed outcomes.
func (r Result) Detail() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Observer receives one call per finished operation.
type Observer interface {
	ObserveOperation(class string, outcome string, elapsed time.Duration)
}

// Executor drives operations to completion.
type Executor struct {
	launcher Launcher
	runner   Runner
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	classes map[string]*semaphore.Weighted
}

// Option configures an Executor.
type Option func(*Executor)

// WithLauncher sets the asynchronous launcher.
func WithLauncher(l Launcher) Option {
	return func(e *Executor) { e.launcher = l }
}

// WithRunner sets the synchronous runner.
func WithRunner(r Runner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithClock sets the clock used for poll sleeps.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates an executor backed by os/exec and the real clock
// unless overridden.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		launcher: ExecLauncher{},
		runner:   NewExecRunner(time.Minute),
		clock:    clock.Real(),
		logger:   slog.Default(),
		classes:  make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) classLock(class string) *semaphore.Weighted {
	e.mu.Lock()
	defer e.mu.Unlock()
	sem, ok := e.classes[class]
	if !ok {
		sem = semaphore.NewWeighted(1)
		e.classes[class] = sem
	}
	return sem
}

// Run executes cmd synchronously.
func (e *Executor) Run(ctx context.Context, cmd Command) *RunResult {
	e.logger.Debug("running command", "cmd", cmd.String())
	result := e.runner.Run(ctx, cmd)
	if !result.Succeeded() {
		e.logger.Warn("command failed", "cmd", cmd.String(), "exit_code", result.ExitCode, "detail", result.Failure())
	}
	return result
}

// RunExclusive runs cmd synchronously while holding the class lock.
func (e *Executor) RunExclusive(ctx context.Context, class string, cmd Command) (*RunResult, error) {
	sem := e.classLock(class)
	if !sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer sem.Release(1)
	return e.Run(ctx, cmd), nil
}

// Execute launches op and polls its probe until it succeeds or the
// deadline passes (OutcomeTimedOut) or ctx is done (OutcomeCancelled).
// Only the wait stops; the launched process is left running.
func (e *Executor) Execute(ctx context.Context, op Operation) Result {
	logger := e.logger.With("class", op.Class, "cmd", op.Launch.String())

	sem := e.classLock(op.Class)
	if !sem.TryAcquire(1) {
		logger.Info("operation rejected, class busy")
		return e.finish(op, Result{Outcome: OutcomeBusy, Err: ErrBusy})
	}
	defer sem.Release(1)

	if op.Sentinel != "" {
		if err := (probe.SentinelFile{Path: op.Sentinel}).Clear(); err != nil {
			logger.Error("failed to clear sentinel", "path", op.Sentinel, "error", err)
			return e.finish(op, Result{Outcome: OutcomeLaunchFailed, Err: err})
		}
	}

	until := op.Until
	if op.Trigger {
		res := e.Run(ctx, op.Launch)
		if !res.Succeeded() {
			return e.finish(op, Result{
				Outcome: OutcomeLaunchFailed,
				Err:     fmt.Errorf("trigger failed: %s", res.Failure()),
			})
		}
		if until == nil {
			return e.finish(op, Result{Outcome: OutcomeCompleted})
		}
	} else {
		handle, err := e.launcher.Launch(ctx, op.Launch)
		if err != nil {
			logger.Error("launch failed", "error", err)
			return e.finish(op, Result{Outcome: OutcomeLaunchFailed, Err: fmt.Errorf("launch failed: %w", err)})
		}
		logger.Info("operation launched")
		if until == nil {
			until = exitProbe(handle)
		}
	}

	outcome, elapsed, err := e.poll(ctx, logger, until, op.Interval, op.Deadline)
	return e.finish(op, Result{Outcome: outcome, Elapsed: elapsed, Err: err})
}

// poll sleeps one interval, then checks, until the deadline is used up.
// The last sleep is shortened so no check happens past the deadline.
func (e *Executor) poll(ctx context.Context, logger *slog.Logger, until probe.Probe, interval, deadline time.Duration) (Outcome, time.Duration, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var elapsed time.Duration
	for elapsed < deadline {
		wait := min(interval, deadline-elapsed)
		select {
		case <-ctx.Done():
			return OutcomeCancelled, elapsed, ctx.Err()
		case <-e.clock.After(wait):
		}
		elapsed += wait

		ok, err := until.Alive(ctx)
		if err != nil {
			if errors.Is(err, ErrProcessFailed) {
				return OutcomeFailed, elapsed, err
			}
			logger.Warn("probe failed", "elapsed", elapsed, "error", err)
			continue
		}
		if ok {
			return OutcomeCompleted, elapsed, nil
		}
	}
	return OutcomeTimedOut, elapsed, ErrTimeout
}

func (e *Executor) finish(op Operation, r Result) Result {
	e.logger.Info("operation finished",
		"class", op.Class,
		"outcome", string(r.Outcome),
		"elapsed", r.Elapsed)
	if e.observer != nil {
		e.observer.ObserveOperation(op.Class, string(r.Outcome), r.Elapsed)
	}
	return r
}

func exitProbe(h *Handle) probe.Probe {
	return probe.Func(func(context.Context) (bool, error) {
		exited, code := h.Exited()
		if !exited {
			return false, nil
		}
		if code != 0 {
			return false, fmt.Errorf("%w: exit status %d", ErrProcessFailed, code)
		}
		return true, nil
	})
}
