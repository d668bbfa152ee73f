// Package status collects disk and service readings into one report.
// Every reading is taken independently, so a dead drive or a failing
// process probe only marks its own line.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sync/errgroup"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/probe"
)

// Volume is a labelled filesystem path to measure.
type Volume struct {
	Label string `mapstructure:"label" json:"label"`
	Path  string `mapstructure:"path" json:"path"`
}

// Service is a labelled liveness probe.
type Service struct {
	Name  string
	Probe probe.Probe
}

// DiskStatus is one volume reading.
type DiskStatus struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
	Err   error  `json:"-"`
}

// PercentFree is free/total*100, or 0 for a failed reading.
func (d DiskStatus) PercentFree() float64 {
	if d.Err != nil || d.Total == 0 {
		return 0
	}
	return float64(d.Free) / float64(d.Total) * 100
}

// FreeGiB is the free space in whole GiB, rounded down.
func (d DiskStatus) FreeGiB() uint64 {
	return d.Free >> 30
}

// String renders the reading as a report line.
func (d DiskStatus) String() string {
	if d.Err != nil {
		return fmt.Sprintf("%s: Drive Unreachable", d.Label)
	}
	return fmt.Sprintf("%s: %d GB Free (%.1f%%)", d.Label, d.FreeGiB(), d.PercentFree())
}

// ServiceStatus is one liveness reading.
type ServiceStatus struct {
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
	Err   error  `json:"-"`
}

// State renders ALIVE, DEAD or unknown.
func (s ServiceStatus) State() string {
	switch {
	case s.Err != nil:
		return "unknown"
	case s.Alive:
		return "ALIVE"
	default:
		return "DEAD"
	}
}

// Report is the aggregated snapshot.
type Report struct {
	CollectedAt time.Time       `json:"collected_at"`
	Disks       []DiskStatus    `json:"disks"`
	Services    []ServiceStatus `json:"services"`
}

// UsageFunc measures the filesystem holding path.
type UsageFunc func(ctx context.Context, path string) (total, free uint64, err error)

// DiskUsage measures path with gopsutil.
func DiskUsage(ctx context.Context, path string) (uint64, uint64, error) {
	stat, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	if stat.Total == 0 {
		return 0, 0, errors.New("volume reports zero capacity")
	}
	return stat.Total, stat.Free, nil
}

// Aggregator takes every reading concurrently.
type Aggregator struct {
	volumes  []Volume
	services []Service
	usage    UsageFunc
	clock    clock.Clock
	logger   *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithUsage replaces the disk measurement.
func WithUsage(fn UsageFunc) Option {
	return func(a *Aggregator) { a.usage = fn }
}

// WithClock sets the clock stamped on reports.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// NewAggregator creates an aggregator for the given volumes and services.
func NewAggregator(volumes []Volume, services []Service, opts ...Option) *Aggregator {
	a := &Aggregator{
		volumes:  volumes,
		services: services,
		usage:    DiskUsage,
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Collect takes every reading. Readings keep their configured order.
func (a *Aggregator) Collect(ctx context.Context) *Report {
	report := &Report{
		CollectedAt: a.clock.Now(),
		Disks:       make([]DiskStatus, len(a.volumes)),
		Services:    make([]ServiceStatus, len(a.services)),
	}

	// Goroutines never return an error: one failed reading must not
	// cancel the others.
	var g errgroup.Group
	for i, v := range a.volumes {
		i, v := i, v
		g.Go(func() error {
			report.Disks[i] = a.readDisk(ctx, v)
			return nil
		})
	}
	for i, s := range a.services {
		i, s := i, s
		g.Go(func() error {
			report.Services[i] = a.readService(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	return report
}

func (a *Aggregator) readDisk(ctx context.Context, v Volume) (ds DiskStatus) {
	ds = DiskStatus{Label: v.Label, Path: v.Path}
	defer func() {
		if r := recover(); r != nil {
			ds.Total, ds.Free = 0, 0
			ds.Err = fmt.Errorf("disk reading panicked: %v", r)
			a.logger.Error("disk reading panicked", "label", v.Label, "path", v.Path, "panic", r)
		}
	}()

	total, free, err := a.usage(ctx, v.Path)
	if err != nil {
		a.logger.Warn("disk reading failed", "label", v.Label, "path", v.Path, "error", err)
		ds.Err = err
		return ds
	}
	ds.Total, ds.Free = total, free
	return ds
}

func (a *Aggregator) readService(ctx context.Context, s Service) (st ServiceStatus) {
	st.Name = s.Name
	defer func() {
		if r := recover(); r != nil {
			st.Err = fmt.Errorf("probe panicked: %v", r)
			a.logger.Error("service probe panicked", "service", s.Name, "panic", r)
		}
	}()

	alive, err := s.Probe.Alive(ctx)
	if err != nil {
		a.logger.Warn("service probe failed", "service", s.Name, "error", err)
		st.Err = err
		return st
	}
	st.Alive = alive
	return st
}
