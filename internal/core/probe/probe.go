// Package probe answers "is external resource X alive right now" for the
// executor and the status aggregator. Each mechanism (sentinel file,
// command output, process table) is one Probe implementation.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Probe reports whether the thing it watches is alive.
type Probe interface {
	Alive(ctx context.Context) (bool, error)
}

// Func adapts a function to Probe.
type Func func(ctx context.Context) (bool, error)

// Alive calls f.
func (f Func) Alive(ctx context.Context) (bool, error) { return f(ctx) }

// SentinelFile is alive when the file at Path exists. Its content is
// never read.
type SentinelFile struct {
	Path string
}

// Alive stats the sentinel.
func (s SentinelFile) Alive(ctx context.Context) (bool, error) {
	_, err := os.Stat(s.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat sentinel %s: %w", s.Path, err)
	}
}

// Clear removes the sentinel so that a leftover file from a previous run
// cannot be mistaken for completion. A missing file is not an error.
func (s SentinelFile) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear sentinel %s: %w", s.Path, err)
	}
	return nil
}

// CommandOutput runs Argv and is alive when it prints anything on stdout.
// This is how a window-title lookup through a shell one-liner is expressed.
type CommandOutput struct {
	Argv []string
}

// Alive runs the check command.
func (c CommandOutput) Alive(ctx context.Context) (bool, error) {
	if len(c.Argv) == 0 {
		return false, errors.New("probe command not configured")
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return false, fmt.Errorf("failed to run %s: %w", c.Argv[0], err)
		}
		// A failing filter (no match) is an ordinary "not alive".
	}
	return strings.TrimSpace(stdout.String()) != "", nil
}

// ProcessName is alive when a running process has exactly Name as its
// executable name, or its command line contains Match when Match is set.
type ProcessName struct {
	Name  string
	Match string
}

// Alive scans the process table.
func (p ProcessName) Alive(ctx context.Context) (bool, error) {
	if p.Name == "" && p.Match == "" {
		return false, errors.New("process probe not configured")
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list processes: %w", err)
	}

	for _, proc := range procs {
		if p.Name != "" {
			name, err := proc.NameWithContext(ctx)
			if err != nil || !strings.EqualFold(name, p.Name) {
				continue
			}
			if p.Match == "" {
				return true, nil
			}
		}
		if p.Match != "" {
			cmdline, err := proc.CmdlineWithContext(ctx)
			if err == nil && strings.Contains(cmdline, p.Match) {
				return true, nil
			}
		}
	}
	return false, nil
}
