package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Command is an external program and its arguments. It is never passed
// through a shell by the executor.
type Command struct {
	Cmd  string   `json:"cmd" mapstructure:"cmd"`
	Args []string `json:"args" mapstructure:"args"`
}

// NewCommand builds a Command from an argv slice.
func NewCommand(argv ...string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	return Command{Cmd: argv[0], Args: argv[1:]}
}

// Expand builds a Command from an argv template, replacing every
// "{name}" placeholder with vars[name]. Values are substituted into
// individual arguments and never re-split.
func Expand(argv []string, vars map[string]string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = r.Replace(a)
	}
	return NewCommand(out...)
}

// String renders the command for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Cmd
	}
	return c.Cmd + " " + strings.Join(c.Args, " ")
}

// RunResult is the captured outcome of a synchronous command.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Error    error
}

// Succeeded reports exit code zero with nothing written to stderr.
func (r *RunResult) Succeeded() bool {
	return r.Error == nil && r.ExitCode == 0 && strings.TrimSpace(r.Stderr) == ""
}

// Failure returns the text to show for a failed run: stderr as written by
// the command, or the run error when stderr is empty.
func (r *RunResult) Failure() string {
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	if r.Error != nil {
		return r.Error.Error()
	}
	if r.ExitCode != 0 {
		return fmt.Sprintf("exit status %d", r.ExitCode)
	}
	return ""
}

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) *RunResult
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) *RunResult

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) *RunResult { return f(ctx, cmd) }

// ExecRunner runs commands with os/exec, killing them after timeout.
type ExecRunner struct {
	timeout time.Duration
}

// NewExecRunner creates a runner with the given per-command timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{timeout: timeout}
}

// Run executes cmd and captures its output streams and exit code.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) *RunResult {
	if cmd.Cmd == "" {
		return &RunResult{ExitCode: -1, Error: errors.New("command not configured")}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, cmd.Cmd, cmd.Args...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	result := &RunResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result.ExitCode = exitError.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Error = err
	}

	return result
}
