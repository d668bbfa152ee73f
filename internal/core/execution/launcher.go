package execution

import (
	"context"
	"errors"
	"os/exec"
	"sync"
)

// Handle tracks a launched process until it exits.
type Handle struct {
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	code int
	err  error
}

// NewHandle returns a handle for a process that has not exited yet.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Exit records the exit status. Only the first call counts.
func (h *Handle) Exit(code int, err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.code = code
		h.err = err
		h.mu.Unlock()
		close(h.done)
	})
}

// Done is closed when the process exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has exited and with which code.
func (h *Handle) Exited() (bool, int) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return true, h.code
	default:
		return false, 0
	}
}

// Launcher starts a command without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, cmd Command) (*Handle, error)
}

// ExecLauncher starts processes with os/exec. The process is detached
// from ctx: giving up on an operation never kills what it launched.
type ExecLauncher struct{}

// Launch starts cmd and reaps it in the background.
func (ExecLauncher) Launch(ctx context.Context, cmd Command) (*Handle, error) {
	if cmd.Cmd == "" {
		return nil, errors.New("command not configured")
	}

	execCmd := exec.Command(cmd.Cmd, cmd.Args...)
	if err := execCmd.Start(); err != nil {
		return nil, err
	}

	h := NewHandle()
	go func() {
		err := execCmd.Wait()
		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}
		h.Exit(code, err)
	}()
	return h, nil
}
