package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/security"
	"github.com/Lin-Jiong-HDU/qbot/internal/render"
)

// ErrUserExit means the user asked to leave the console
var ErrUserExit = errors.New("user requested exit")

// ParseRequest turns a console line into a request. The key of addkey
// and the folder of deny/allow take the rest of the line, so they may
// contain spaces.
func ParseRequest(line, caller string) (core.Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return core.Request{}, errors.New("empty command")
	}

	req := core.Request{Command: strings.ToLower(fields[0]), CallerID: caller}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch security.Command(req.Command) {
	case security.CommandAddKey:
		if len(fields) < 3 {
			return req, errors.New("usage: addkey <vault> <key>")
		}
		key := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
		req.Args = []string{fields[1], key}
	case security.CommandDeny, security.CommandAllow:
		if rest == "" {
			return req, fmt.Errorf("usage: %s <folder>", req.Command)
		}
		req.Args = []string{rest}
	default:
		req.Args = fields[1:]
	}
	return req, nil
}

// Console is the interactive operator shell
type Console struct {
	engine   Engine
	caller   string
	renderer *render.Renderer
	out      io.Writer
	lines    <-chan string
}

// NewConsole creates a console reading from in
func NewConsole(engine Engine, caller string, renderer *render.Renderer, in io.Reader, out io.Writer) *Console {
	return &Console{
		engine:   engine,
		caller:   caller,
		renderer: renderer,
		out:      out,
		lines:    readLines(in),
	}
}

// Run reads commands until /exit, end of input or ctx is done
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "qbot console. Type /help for commands.\n")
	for {
		fmt.Fprint(c.out, "qbot> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-c.lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			if err := c.ProcessInput(ctx, line); err != nil {
				if errors.Is(err, ErrUserExit) {
					return nil
				}
				return err
			}
		}
	}
}

// ProcessInput handles one console line
func (c *Console) ProcessInput(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, "/") {
		shouldExit := c.HandleCommand(input)
		if shouldExit {
			return ErrUserExit
		}
		return nil
	}

	req, err := ParseRequest(input, c.caller)
	if err != nil {
		fmt.Fprintf(c.out, "%v\n", err)
		return nil
	}

	resp := Execute(ctx, c.engine, req, c.ask)
	fmt.Fprint(c.out, c.renderer.RenderResponse(resp))
	return nil
}

func (c *Console) ask(p *confirm.Prompt) (confirm.Button, bool, error) {
	return confirmFrom(p, c.lines, c.out)
}

// HandleCommand handles a slash command and reports whether to exit
func (c *Console) HandleCommand(cmd string) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "/exit", "/quit":
		return true
	case "/help":
		c.DisplayHelp()
	case "/clear":
		fmt.Fprint(c.out, "\033[H\033[2J")
	case "/whoami":
		fmt.Fprintf(c.out, "caller: %s\n", c.caller)
	default:
		fmt.Fprintf(c.out, "unknown command: %s\n", parts[0])
	}
	return false
}

// DisplayHelp shows the command list
func (c *Console) DisplayHelp() {
	help := `
Commands:
  lookup                     Public IP, SSH port and service readiness
  restart                    Trigger weekly maintenance (asks for confirmation)
  start                      Awaken the port watcher
  lock                       Stop the port watcher and lock the drive
  status                     Storage and watchdog report
  addkey <vault> <key>       Add a public key to a vault (asks for confirmation)
  deny <folder>              Deny drive user access to a portal folder
  allow <folder>             Restore drive user access to a portal folder

  /help  /whoami  /clear  /exit
`
	fmt.Fprintln(c.out, help)
}
