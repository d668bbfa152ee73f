package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/execution"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/lookup"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/probe"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/security"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/status"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/vault"
	"github.com/Lin-Jiong-HDU/qbot/internal/storage"
)

// Operation classes. Operations of one class never overlap.
const (
	ClassMaintenance = "maintenance"
	ClassWatcher     = "watcher"
	ClassAccess      = "access"
)

// Collector produces a status report.
type Collector interface {
	Collect(ctx context.Context) *status.Report
}

// Looker produces a lookup result.
type Looker interface {
	Run(ctx context.Context) *lookup.Result
}

// Observer receives command and confirmation counts.
type Observer interface {
	IncrementCommand(command, status string)
	IncrementConfirmation(state string)
}

// Engine runs the authorization, confirmation and execution pipeline.
type Engine struct {
	cfg        *storage.Config
	security   *security.SecurityController
	prompts    *confirm.Manager
	executor   *execution.Executor
	collector  Collector
	looker     Looker
	watcher    probe.Probe
	vaults     vault.Map
	clock      clock.Clock
	logger     *slog.Logger
	observer   Observer
	execOpts   []execution.Option
	execRunner execution.Runner

	requirements map[security.Command]security.Requirement
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock for prompts and polling.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithExecutor replaces the operation executor.
func WithExecutor(x *execution.Executor) Option {
	return func(e *Engine) { e.executor = x }
}

// WithExecutorOptions adds options to the default executor.
func WithExecutorOptions(opts ...execution.Option) Option {
	return func(e *Engine) { e.execOpts = append(e.execOpts, opts...) }
}

// WithCollector replaces the status aggregator.
func WithCollector(c Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithLooker replaces the network lookup.
func WithLooker(l Looker) Option {
	return func(e *Engine) { e.looker = l }
}

// WithRequirements replaces the per-command requirement table.
func WithRequirements(reqs map[security.Command]security.Requirement) Option {
	return func(e *Engine) { e.requirements = reqs }
}

// WithWatcher replaces the port watcher probe.
func WithWatcher(p probe.Probe) Option {
	return func(e *Engine) { e.watcher = p }
}

// NewEngine creates an engine for cfg. Collaborators not supplied
// through options are built from cfg.
func NewEngine(cfg *storage.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		security: security.NewSecurityController(&cfg.Bot.Policy, cfg.Paths.PortalDir),
		vaults:   vault.NewMap(cfg.Paths.VaultQDrive, cfg.Paths.VaultQDriveAdmin),
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.requirements != nil {
		e.security.SetRequirements(e.requirements)
	}
	e.prompts = confirm.NewManager(e.clock, cfg.Schedule.ConfirmTimeout, e.logger)
	if e.watcher == nil {
		e.watcher = WatcherProbe(cfg)
	}
	e.execRunner = execution.NewExecRunner(cfg.Schedule.CommandTimeout)
	if e.executor == nil {
		base := []execution.Option{
			execution.WithRunner(e.execRunner),
			execution.WithClock(e.clock),
			execution.WithLogger(e.logger),
		}
		e.executor = execution.NewExecutor(append(base, e.execOpts...)...)
	}
	if e.collector == nil {
		e.collector = status.NewAggregator(
			cfg.Status.Volumes,
			[]status.Service{{Name: "Watchdog", Probe: e.watcher}},
			status.WithClock(e.clock),
			status.WithLogger(e.logger),
		)
	}
	if e.looker == nil {
		e.looker = lookup.New(cfg.Lookup, cfg.Paths.SSHConfig, e.execRunner, e.logger)
	}
	return e
}

// WatcherProbe builds the port watcher probe from cfg: a process table
// match when a process name is configured, the check command otherwise.
func WatcherProbe(cfg *storage.Config) probe.Probe {
	if cfg.Watcher.ProcessName != "" || cfg.Watcher.Match != "" {
		return probe.ProcessName{Name: cfg.Watcher.ProcessName, Match: cfg.Watcher.Match}
	}
	cmd := execution.Expand(cfg.Watcher.Check, map[string]string{"title": cfg.Watcher.Title})
	return probe.CommandOutput{Argv: append([]string{cmd.Cmd}, cmd.Args...)}
}

// Prompt returns a pending confirmation by id.
func (e *Engine) Prompt(id string) (*confirm.Prompt, bool) {
	return e.prompts.Get(id)
}

// Handle runs one command through the pipeline.
func (e *Engine) Handle(ctx context.Context, req Request) *Response {
	resp := e.handle(ctx, req)
	e.logger.Info("command handled",
		"command", resp.Command,
		"caller", req.CallerID,
		"status", string(resp.Status),
	)
	if e.observer != nil {
		e.observer.IncrementCommand(resp.Command, string(resp.Status))
	}
	return resp
}

func (e *Engine) handle(ctx context.Context, req Request) *Response {
	cmd := security.Command(strings.ToLower(strings.TrimSpace(req.Command)))

	check := e.security.CheckCommand(cmd, req.CallerID)
	if !check.Allowed {
		if check.Unauthorized {
			e.logger.Warn("unauthorized command", "command", string(cmd), "caller", req.CallerID)
			return &Response{Command: string(cmd), Status: StatusUnauthorized, Message: check.Reason}
		}
		return &Response{Command: string(cmd), Status: StatusRejected, Message: check.Reason}
	}

	pl, rejected := e.plan(cmd, req)
	if rejected != nil {
		return rejected
	}
	if check.RequiresConfirm {
		return e.open(req, pl.prompt, pl.run)
	}
	return pl.run(ctx)
}

// plan is a validated command ready to run, now or after confirmation.
type plan struct {
	prompt string
	run    func(ctx context.Context) *Response
}

func (e *Engine) plan(cmd security.Command, req Request) (plan, *Response) {
	switch cmd {
	case security.CommandLookup:
		return plan{prompt: "Look up the connection details?", run: e.lookup}, nil
	case security.CommandRestart:
		return plan{prompt: "Restart WORLDBOX?", run: e.restart}, nil
	case security.CommandStart:
		return plan{prompt: "Awaken the Port Watcher?", run: e.start}, nil
	case security.CommandLock:
		return plan{prompt: "Lock QDRIVE?", run: e.lock}, nil
	case security.CommandStatus:
		return plan{prompt: "Collect the storage report?", run: e.status}, nil
	case security.CommandAddKey:
		return e.planAddKey(req)
	case security.CommandDeny, security.CommandAllow:
		return e.planAccess(cmd, req)
	default:
		return plan{}, &Response{Command: string(cmd), Status: StatusRejected, Message: fmt.Sprintf("unknown command: %s", cmd)}
	}
}

// Press delivers a button press to a pending confirmation and returns
// the resulting response. An approved prompt runs its operation before
// Press returns.
func (e *Engine) Press(ctx context.Context, promptID, callerID string, button confirm.Button) *Response {
	p, err := e.prompts.Press(ctx, promptID, callerID, button)
	switch {
	case errors.Is(err, confirm.ErrNotFound):
		return &Response{Status: StatusRejected, Message: "Confirmation not found or already resolved."}
	case errors.Is(err, confirm.ErrNotRequester):
		e.logger.Warn("confirmation pressed by someone else", "id", promptID, "caller", callerID)
		return &Response{Command: p.Command, Status: StatusRejected, Message: "Only the requester can answer this confirmation."}
	case errors.Is(err, confirm.ErrUnknownInput):
		return &Response{Command: p.Command, Status: StatusRejected, Message: fmt.Sprintf("unknown button: %s", button)}
	case errors.Is(err, confirm.ErrResolved):
		resp := &Response{Command: p.Command, Status: StatusRejected, Message: "Confirmation already answered."}
		if running(p) {
			resp.Detail = "the operation is still running"
		}
		return resp
	}
	return e.Resolve(p)
}

// running reports whether p was approved and its action has not returned.
func running(p *confirm.Prompt) bool {
	select {
	case <-p.Done():
		return false
	default:
		return p.State() == confirm.StateApproved
	}
}

// Resolve converts the state of p into a response.
func (e *Engine) Resolve(p *confirm.Prompt) *Response {
	switch p.State() {
	case confirm.StateApproved:
		if running(p) {
			return &Response{Command: p.Command, Status: StatusBusy, Message: "Operation in progress."}
		}
		if resp, ok := p.Result().(*Response); ok {
			return resp
		}
		return &Response{Command: p.Command, Status: StatusFailed, Message: "Operation returned no result."}
	case confirm.StateAborted:
		return &Response{Command: p.Command, Status: StatusAborted, Message: abortMessage(p.Command)}
	case confirm.StateExpired:
		return &Response{Command: p.Command, Status: StatusExpired, Message: "Confirmation expired."}
	default:
		return e.awaiting(p)
	}
}

func abortMessage(command string) string {
	switch security.Command(command) {
	case security.CommandRestart:
		return "Restart Aborted."
	case security.CommandAddKey:
		return "Injection Aborted."
	default:
		return "Aborted."
	}
}

func (e *Engine) open(req Request, description string, action func(ctx context.Context) *Response) *Response {
	p := e.prompts.Open(req.CallerID, strings.ToLower(strings.TrimSpace(req.Command)), description, func(ctx context.Context) any {
		return action(ctx)
	})
	if e.observer != nil {
		p.OnResolved(func(p *confirm.Prompt) {
			e.observer.IncrementConfirmation(string(p.State()))
		})
	}
	return e.awaiting(p)
}

func (e *Engine) awaiting(p *confirm.Prompt) *Response {
	return &Response{
		Command:  p.Command,
		Status:   StatusAwaitingConfirmation,
		Message:  p.Description,
		Detail:   fmt.Sprintf("expires in %s", p.Remaining().Round(time.Second)),
		PromptID: p.ID,
	}
}

func (e *Engine) vars() map[string]string {
	return map[string]string{
		"base_dir": e.cfg.Paths.BaseDir,
		"profile":  e.cfg.Paths.PowershellProfile,
		"title":    e.cfg.Watcher.Title,
		"account":  e.cfg.Access.Account,
	}
}
