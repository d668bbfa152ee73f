package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lin-Jiong-HDU/qbot/internal/core/execution"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/probe"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/security"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/vault"
)

func (e *Engine) lookup(ctx context.Context) *Response {
	result := e.looker.Run(ctx)
	return &Response{
		Command: string(security.CommandLookup),
		Status:  StatusOK,
		Message: result.Status(),
		Lookup:  result,
	}
}

func (e *Engine) status(ctx context.Context) *Response {
	return &Response{
		Command: string(security.CommandStatus),
		Status:  StatusOK,
		Message: "QDRIVE Dual-Storage Report",
		Report:  e.collector.Collect(ctx),
	}
}

func (e *Engine) restart(ctx context.Context) *Response {
	sentinel := e.cfg.Paths.MaintenanceSentinel()
	res := e.executor.Execute(ctx, execution.Operation{
		Class:    ClassMaintenance,
		Launch:   execution.Expand(e.cfg.Commands.Maintenance, e.vars()),
		Sentinel: sentinel,
		Until:    probe.SentinelFile{Path: sentinel},
		Interval: e.cfg.Schedule.RestartPollInterval,
		Deadline: e.cfg.Schedule.RestartDeadline,
	})

	resp := &Response{Command: string(security.CommandRestart)}
	switch res.Outcome {
	case execution.OutcomeCompleted:
		resp.Status = StatusOK
		resp.Message = "Reboot in 15 seconds... QDRIVE will heal itself within 5 minutes."
	case execution.OutcomeTimedOut:
		resp.Status = StatusTimedOut
		resp.Message = "maintenance failed: Timeout."
	case execution.OutcomeBusy:
		resp.Status = StatusBusy
		resp.Message = "Maintenance is already running."
	case execution.OutcomeCancelled:
		resp.Status = StatusFailed
		resp.Message = "Maintenance launched, but the wait was cancelled."
		resp.Detail = res.Detail()
	default:
		resp.Status = StatusFailed
		resp.Message = "maintenance failed"
		resp.Detail = res.Detail()
	}
	return resp
}

func (e *Engine) start(ctx context.Context) *Response {
	resp := &Response{Command: string(security.CommandStart)}

	alive, err := e.watcher.Alive(ctx)
	if err != nil {
		e.logger.Warn("watcher check failed", "error", err)
	}
	if alive {
		resp.Status = StatusOK
		resp.Message = "Port Watcher is already awake."
		return resp
	}

	res := e.executor.Execute(ctx, execution.Operation{
		Class:    ClassWatcher,
		Launch:   execution.Expand(e.cfg.Commands.StartWatcher, e.vars()),
		Trigger:  true,
		Until:    e.watcher,
		Interval: e.cfg.Schedule.StartPollInterval,
		Deadline: e.cfg.Schedule.StartDeadline,
	})

	switch res.Outcome {
	case execution.OutcomeCompleted:
		resp.Status = StatusOK
		resp.Message = "Port Watcher Awakened..."
	case execution.OutcomeTimedOut:
		resp.Status = StatusTimedOut
		resp.Message = "Start Failed: Window did not appear."
	case execution.OutcomeBusy:
		resp.Status = StatusBusy
		resp.Message = "The Port Watcher is already being started or stopped."
	default:
		resp.Status = StatusFailed
		resp.Message = "Start Failed"
		resp.Detail = res.Detail()
	}
	return resp
}

func (e *Engine) lock(ctx context.Context) *Response {
	resp := &Response{Command: string(security.CommandLock)}

	res, err := e.executor.RunExclusive(ctx, ClassWatcher, execution.Expand(e.cfg.Commands.Lock, e.vars()))
	if errors.Is(err, execution.ErrBusy) {
		resp.Status = StatusBusy
		resp.Message = "The Port Watcher is already being started or stopped."
		return resp
	}

	if res.Succeeded() {
		resp.Status = StatusOK
		resp.Message = "QDRIVE Locked. Port Watcher killed, QDRIVE Offline."
		return resp
	}
	resp.Status = StatusFailed
	resp.Message = "Lock Result"
	resp.Detail = res.Failure()
	return resp
}

func (e *Engine) planAddKey(req Request) (plan, *Response) {
	resp := &Response{Command: string(security.CommandAddKey)}
	if len(req.Args) < 2 {
		resp.Status = StatusRejected
		resp.Message = "usage: addkey <vault> <key>"
		return plan{}, resp
	}
	name, key := req.Args[0], req.Args[1]

	if _, err := e.vaults.Resolve(name); err != nil {
		resp.Status = StatusRejected
		resp.Message = "Invalid vault selection."
		resp.Detail = fmt.Sprintf("choose one of: %v", e.vaults.Names())
		return plan{}, resp
	}
	if _, err := vault.ValidatePayload(key); err != nil {
		resp.Status = StatusRejected
		resp.Message = "Invalid key."
		resp.Detail = err.Error()
		return plan{}, resp
	}

	return plan{
		prompt: fmt.Sprintf("Confirm SSH Key Injection? Target: %s", name),
		run:    func(context.Context) *Response { return e.addKey(name, key) },
	}, nil
}

func (e *Engine) addKey(name, key string) *Response {
	resp := &Response{Command: string(security.CommandAddKey)}
	if err := vault.Inject(name, key, e.vaults); err != nil {
		e.logger.Error("key injection failed", "vault", name, "error", err)
		resp.Status = StatusFailed
		resp.Message = "Failed"
		resp.Detail = err.Error()
		return resp
	}
	resp.Status = StatusOK
	resp.Message = fmt.Sprintf("Key injected into %s.", name)
	return resp
}

func (e *Engine) planAccess(cmd security.Command, req Request) (plan, *Response) {
	resp := &Response{Command: string(cmd)}
	if len(req.Args) < 1 {
		resp.Status = StatusRejected
		resp.Message = fmt.Sprintf("usage: %s <folder>", cmd)
		return plan{}, resp
	}
	folder := req.Args[0]

	path, err := e.security.ResolveFolder(folder)
	if err != nil {
		e.logger.Warn("folder rejected", "command", string(cmd), "folder", folder, "error", err)
		resp.Status = StatusRejected
		resp.Message = "Invalid folder name."
		resp.Detail = err.Error()
		return plan{}, resp
	}

	verb := "Deny"
	if cmd == security.CommandAllow {
		verb = "Allow"
	}
	return plan{
		prompt: fmt.Sprintf("%s %s access to %s?", verb, e.cfg.Access.Account, folder),
		run:    func(ctx context.Context) *Response { return e.access(ctx, cmd, folder, path) },
	}, nil
}

func (e *Engine) access(ctx context.Context, cmd security.Command, folder, path string) *Response {
	resp := &Response{Command: string(cmd)}

	argv := e.cfg.Commands.Deny
	verb := "locked"
	if cmd == security.CommandAllow {
		argv = e.cfg.Commands.Allow
		verb = "unlocked"
	}
	vars := e.vars()
	vars["path"] = path

	res, err := e.executor.RunExclusive(ctx, ClassAccess, execution.Expand(argv, vars))
	if errors.Is(err, execution.ErrBusy) {
		resp.Status = StatusBusy
		resp.Message = "Another access change is in progress."
		return resp
	}

	// icacls reports progress on stdout; only the exit status decides.
	if res.Error == nil && res.ExitCode == 0 {
		resp.Status = StatusOK
		resp.Message = fmt.Sprintf("%s %s for '%s'.", folder, verb, e.cfg.Access.Account)
		return resp
	}
	resp.Status = StatusFailed
	resp.Message = "Failed"
	resp.Detail = res.Stderr
	if resp.Detail == "" {
		resp.Detail = res.Failure()
	}
	return resp
}
