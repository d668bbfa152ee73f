package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/tui"
)

// Engine is the part of the orchestration engine the terminal drives.
type Engine interface {
	Handle(ctx context.Context, req core.Request) *core.Response
	Press(ctx context.Context, promptID, callerID string, button confirm.Button) *core.Response
	Resolve(p *confirm.Prompt) *core.Response
	Prompt(id string) (*confirm.Prompt, bool)
}

// Asker collects an answer for a pending prompt. It returns false when
// the prompt resolved without an answer.
type Asker func(p *confirm.Prompt) (confirm.Button, bool, error)

// Execute handles req and, when the command needs confirmation, asks
// for it and delivers the answer.
func Execute(ctx context.Context, engine Engine, req core.Request, ask Asker) *core.Response {
	resp := engine.Handle(ctx, req)
	if !resp.Pending() {
		return resp
	}

	p, ok := engine.Prompt(resp.PromptID)
	if !ok {
		return resp
	}

	button, answered, err := ask(p)
	if err != nil {
		p.Expire()
		return &core.Response{Command: p.Command, Status: core.StatusFailed, Message: "Confirmation failed", Detail: err.Error()}
	}
	if !answered {
		return engine.Resolve(p)
	}
	return engine.Press(ctx, p.ID, req.CallerID, button)
}

// Confirm asks on stdin/stdout
func Confirm(p *confirm.Prompt) (confirm.Button, bool, error) {
	return ConfirmWithIO(p, nil, nil)
}

// ConfirmWithIO asks with provided IO (for testing)
func ConfirmWithIO(p *confirm.Prompt, input io.Reader, output io.Writer) (confirm.Button, bool, error) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}
	return confirmFrom(p, readLines(input), output)
}

// readLines feeds lines from r into a channel that is closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func confirmFrom(p *confirm.Prompt, lines <-chan string, output io.Writer) (confirm.Button, bool, error) {
	yes, no := tui.Labels(p.Command)

	fmt.Fprintf(output, "\n⚠️  %s\n\n", p.Description)
	fmt.Fprintf(output, "[y] %s  [n] %s  (expires in %s)\n> ", yes, no, p.Remaining().Round(time.Second))

	for {
		select {
		case <-p.Done():
			fmt.Fprintln(output, "\n⌛ Confirmation expired.")
			return "", false, nil

		case line, ok := <-lines:
			if !ok {
				// Closed input counts as a refusal.
				fmt.Fprintln(output, "✗ Aborted")
				return confirm.ButtonCancel, true, nil
			}

			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				fmt.Fprintln(output, "✓ Authorization Confirmed")
				return confirm.ButtonConfirm, true, nil
			case "n", "no", "q":
				fmt.Fprintln(output, "✗ Aborted")
				return confirm.ButtonCancel, true, nil
			default:
				fmt.Fprintf(output, "Please answer y or n: ")
			}
		}
	}
}
