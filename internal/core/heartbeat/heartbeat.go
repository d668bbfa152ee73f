// Package heartbeat writes a liveness timestamp on a fixed schedule so an
// external watchdog can tell the orchestrator is alive and connected.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
)

// TimestampLayout is the heartbeat record format.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultInterval is the heartbeat period.
const DefaultInterval = time.Minute

// Connection reports whether the host connection is up.
type Connection interface {
	Connected() bool
}

// Observer is told about every tick.
type Observer interface {
	ObserveHeartbeat(result string)
}

// Tick results passed to Observer.
const (
	ResultWritten = "written"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Monitor owns the heartbeat file.
type Monitor struct {
	path     string
	interval time.Duration
	conn     Connection
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer

	once sync.Once
	done chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithObserver sets the tick observer.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// NewMonitor creates a monitor writing to path while conn is connected.
func NewMonitor(path string, conn Connection, opts ...Option) *Monitor {
	m := &Monitor{
		path:     path,
		interval: DefaultInterval,
		conn:     conn,
		clock:    clock.Real(),
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tick writes the current timestamp if the connection is up. A
// disconnected tick is skipped without error.
func (m *Monitor) Tick() error {
	if !m.conn.Connected() {
		m.observe(ResultSkipped)
		return nil
	}

	if err := m.write(m.clock.Now()); err != nil {
		m.observe(ResultFailed)
		return err
	}
	m.observe(ResultWritten)
	return nil
}

func (m *Monitor) write(now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create heartbeat directory: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(now.Format(TimestampLayout)), 0o644); err != nil {
		return fmt.Errorf("failed to write heartbeat: %w", err)
	}
	return nil
}

// Start launches the tick loop. Only the first call has any effect; it
// reports whether this call started the loop. The first tick runs
// immediately.
func (m *Monitor) Start(ctx context.Context) bool {
	started := false
	m.once.Do(func() {
		started = true
		m.logger.Info("heartbeat active", "path", m.path, "interval", m.interval)
		go m.run(ctx)
	})
	return started
}

// Done is closed when a started loop exits.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	if err := m.Tick(); err != nil {
		m.logger.Error("heartbeat report failed", "path", m.path, "error", err)
	}
}

func (m *Monitor) observe(result string) {
	if m.observer != nil {
		m.observer.ObserveHeartbeat(result)
	}
}
