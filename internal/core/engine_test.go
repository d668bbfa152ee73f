package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lin-Jiong-HDU/qbot/internal/clock"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/execution"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/lookup"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/probe"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/security"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/status"
	"github.com/Lin-Jiong-HDU/qbot/internal/storage"
)

const (
	admin    = "123456789"
	stranger = "987654321"
	sshKey   = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIFakeKeyForTests user@laptop"
)

type fixture struct {
	engine *Engine
	cfg    *storage.Config
	clock  *clock.FakeClock

	mu       sync.Mutex
	ran      []execution.Command
	launched []execution.Command

	runResult  *execution.RunResult
	onLaunch   func()
	launchedCh chan struct{}
	watcher    atomic.Bool
	counts     map[string]int
}

func (f *fixture) IncrementCommand(command, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[command+"/"+status]++
}

func (f *fixture) IncrementConfirmation(state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts["confirm/"+state]++
}

func (f *fixture) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func (f *fixture) ranCommands() []execution.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execution.Command(nil), f.ran...)
}

func (f *fixture) launchedCommands() []execution.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execution.Command(nil), f.launched...)
}

type launcherFunc func(ctx context.Context, cmd execution.Command) (*execution.Handle, error)

func (fn launcherFunc) Launch(ctx context.Context, cmd execution.Command) (*execution.Handle, error) {
	return fn(ctx, cmd)
}

type staticCollector struct{ report *status.Report }

func (c staticCollector) Collect(context.Context) *status.Report { return c.report }

type staticLooker struct{ result *lookup.Result }

func (l staticLooker) Run(context.Context) *lookup.Result { return l.result }

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	portal := filepath.Join(dir, "Drive-Portal")
	require.NoError(t, os.MkdirAll(filepath.Join(portal, "Photos"), 0o755))

	cfg := &storage.Config{}
	cfg.Bot.PrivilegedID = admin
	cfg.Bot.Token = "token"
	cfg.Paths = storage.PathsConfig{
		HealthFile:       filepath.Join(dir, "logs", "health.txt"),
		BaseDir:          dir,
		PortalDir:        portal,
		VaultQDrive:      filepath.Join(dir, "qdrive", "authorized_keys"),
		VaultQDriveAdmin: filepath.Join(dir, "admin", "administrators_authorized_keys"),
	}
	cfg.Schedule = storage.ScheduleConfig{
		HeartbeatInterval:   time.Minute,
		ConfirmTimeout:      30 * time.Second,
		RestartPollInterval: 5 * time.Second,
		RestartDeadline:     240 * time.Second,
		StartPollInterval:   2 * time.Second,
		StartDeadline:       12 * time.Second,
		CommandTimeout:      time.Minute,
	}
	cfg.Commands = storage.CommandsConfig{
		Maintenance:  []string{"powershell.exe", "-File", `{base_dir}\WeeklyMaintenance\WeeklyMaintenance.ps1`},
		StartWatcher: []string{"powershell", "-Command", "Start-ScheduledTask"},
		Lock:         []string{"powershell", "-Command", ". '{profile}'; QLOCK"},
		Deny:         []string{"icacls", "{path}", "/deny", "{account}:(OI)(CI)(F)"},
		Allow:        []string{"icacls", "{path}", "/remove:d", "{account}"},
	}
	cfg.Access.Account = "QDRIVE"

	f := &fixture{
		cfg:        cfg,
		clock:      clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		runResult:  &execution.RunResult{},
		launchedCh: make(chan struct{}, 1),
		counts:     make(map[string]int),
	}

	runner := execution.RunnerFunc(func(_ context.Context, cmd execution.Command) *execution.RunResult {
		f.mu.Lock()
		f.ran = append(f.ran, cmd)
		res := f.runResult
		f.mu.Unlock()
		return res
	})
	launcher := launcherFunc(func(_ context.Context, cmd execution.Command) (*execution.Handle, error) {
		f.mu.Lock()
		f.launched = append(f.launched, cmd)
		onLaunch := f.onLaunch
		f.mu.Unlock()
		if onLaunch != nil {
			onLaunch()
		}
		f.launchedCh <- struct{}{}
		return execution.NewHandle(), nil
	})

	base := []Option{
		WithClock(f.clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(f),
		WithExecutorOptions(execution.WithRunner(runner), execution.WithLauncher(launcher)),
		WithWatcher(probe.Func(func(context.Context) (bool, error) { return f.watcher.Load(), nil })),
		WithCollector(staticCollector{report: &status.Report{
			Disks: []status.DiskStatus{{Label: "Internal (C)", Total: 100 << 30, Free: 40 << 30}},
		}}),
		WithLooker(staticLooker{result: &lookup.Result{IP: "203.0.113.7", Port: "2222", ServiceStatus: "Running", Ready: true}}),
	}
	f.engine = NewEngine(cfg, append(base, opts...)...)
	return f
}

// drive advances the clock by step whenever something waits on it,
// until done yields.
func drive(t *testing.T, clk *clock.FakeClock, step time.Duration, done <-chan *Response) *Response {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r := <-done:
			return r
		case <-timeout:
			t.Fatal("engine did not respond")
		default:
		}
		if clk.Pending() > 0 {
			clk.Advance(step)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

func TestHandle_UnauthorizedHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requests := []Request{
		{Command: "restart"},
		{Command: "start"},
		{Command: "lock"},
		{Command: "status"},
		{Command: "addkey", Args: []string{"qdrive", sshKey}},
		{Command: "deny", Args: []string{"Photos"}},
		{Command: "allow", Args: []string{"Photos"}},
	}
	for _, req := range requests {
		req.CallerID = stranger
		resp := f.engine.Handle(ctx, req)
		assert.Equal(t, StatusUnauthorized, resp.Status, req.Command)
		assert.Equal(t, "Unauthorized.", resp.Message)
		assert.Empty(t, resp.PromptID)
	}

	assert.Empty(t, f.ranCommands())
	assert.Empty(t, f.launchedCommands())
	assert.Zero(t, f.clock.Pending(), "no prompt was opened")
	_, err := os.Stat(f.cfg.Paths.VaultQDrive)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, f.count("lock/unauthorized"))
}

func TestHandle_UnknownCommand(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), Request{Command: "format", CallerID: admin})
	assert.Equal(t, StatusRejected, resp.Status)
	assert.Contains(t, resp.Message, "unknown command")
}

func TestHandle_LookupIsOpen(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), Request{Command: "LOOKUP", CallerID: stranger})
	require.Equal(t, StatusOK, resp.Status)
	require.NotNil(t, resp.Lookup)
	assert.Equal(t, "203.0.113.7", resp.Lookup.IP)
	assert.Equal(t, lookup.StatusReady, resp.Message)
}

func TestRestart_ConfirmThenComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sentinel := f.cfg.Paths.MaintenanceSentinel()
	require.NoError(t, os.MkdirAll(filepath.Dir(sentinel), 0o755))
	require.NoError(t, os.WriteFile(sentinel, []byte("stale"), 0o644))

	var staleAtLaunch atomic.Bool
	f.onLaunch = func() {
		_, err := os.Stat(sentinel)
		staleAtLaunch.Store(err == nil)
		// the script reports it is about to reboot
		_ = os.WriteFile(sentinel, []byte("rebooting"), 0o644)
	}

	resp := f.engine.Handle(ctx, Request{Command: "restart", CallerID: admin})
	require.Equal(t, StatusAwaitingConfirmation, resp.Status)
	require.NotEmpty(t, resp.PromptID)
	assert.Equal(t, "Restart WORLDBOX?", resp.Message)
	assert.Empty(t, f.launchedCommands(), "nothing runs before confirmation")

	done := make(chan *Response, 1)
	go func() { done <- f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm) }()

	<-f.launchedCh
	f.clock.WaitForTimers(1)
	f.clock.Advance(5 * time.Second)

	final := <-done
	assert.Equal(t, StatusOK, final.Status)
	assert.Contains(t, final.Message, "Reboot in 15 seconds")
	assert.False(t, staleAtLaunch.Load(), "stale sentinel removed before launch")

	launched := f.launchedCommands()
	require.Len(t, launched, 1)
	assert.Equal(t, "powershell.exe", launched[0].Cmd)
	assert.Equal(t, f.cfg.Paths.BaseDir+`\WeeklyMaintenance\WeeklyMaintenance.ps1`, launched[0].Args[1])

	assert.Equal(t, 1, f.count("confirm/approved"))

	again := f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm)
	assert.Equal(t, StatusRejected, again.Status, "resolved prompts are forgotten")
	assert.Len(t, f.launchedCommands(), 1)
}

func TestRestart_TimesOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.engine.Handle(ctx, Request{Command: "restart", CallerID: admin})
	require.Equal(t, StatusAwaitingConfirmation, resp.Status)

	done := make(chan *Response, 1)
	go func() { done <- f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm) }()
	<-f.launchedCh

	final := drive(t, f.clock, 5*time.Second, done)
	assert.Equal(t, StatusTimedOut, final.Status)
	assert.Equal(t, "maintenance failed: Timeout.", final.Message)
}

func TestRestart_SecondPressWhileRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.engine.Handle(ctx, Request{Command: "restart", CallerID: admin})
	p, ok := f.engine.Prompt(resp.PromptID)
	require.True(t, ok)

	done := make(chan *Response, 1)
	go func() { done <- f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm) }()
	<-f.launchedCh

	second := f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm)
	assert.Equal(t, StatusRejected, second.Status)
	assert.Equal(t, "Confirmation already answered.", second.Message)
	assert.Equal(t, "the operation is still running", second.Detail)
	assert.Equal(t, StatusBusy, f.engine.Resolve(p).Status)

	final := drive(t, f.clock, 5*time.Second, done)
	assert.Equal(t, StatusTimedOut, final.Status)
	assert.Same(t, final, f.engine.Resolve(p))
	assert.Len(t, f.launchedCommands(), 1)
}

func TestRestart_CancelledWaitIsNotTimeout(t *testing.T) {
	f := newFixture(t)

	resp := f.engine.Handle(context.Background(), Request{Command: "restart", CallerID: admin})
	require.Equal(t, StatusAwaitingConfirmation, resp.Status)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Response, 1)
	go func() { done <- f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm) }()
	<-f.launchedCh
	f.clock.WaitForTimers(1)
	cancel()

	select {
	case final := <-done:
		assert.Equal(t, StatusFailed, final.Status)
		assert.Equal(t, "Maintenance launched, but the wait was cancelled.", final.Message)
		assert.Equal(t, context.Canceled.Error(), final.Detail)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled restart did not return")
	}
}

func TestRestart_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.engine.Handle(ctx, Request{Command: "restart", CallerID: admin})
	final := f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonCancel)

	assert.Equal(t, StatusAborted, final.Status)
	assert.Equal(t, "Restart Aborted.", final.Message)
	assert.Empty(t, f.launchedCommands())
	assert.Equal(t, 1, f.count("confirm/aborted"))
}

func TestRestart_Expires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.engine.Handle(ctx, Request{Command: "restart", CallerID: admin})
	p, ok := f.engine.Prompt(resp.PromptID)
	require.True(t, ok)

	f.clock.Advance(30 * time.Second)

	assert.Equal(t, StatusExpired, f.engine.Resolve(p).Status)
	late := f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm)
	assert.Equal(t, StatusRejected, late.Status)
	assert.Empty(t, f.launchedCommands())
	assert.Equal(t, 1, f.count("confirm/expired"))
}

func TestPress_OnlyRequester(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.engine.Handle(ctx, Request{Command: "restart", CallerID: admin})
	other := f.engine.Press(ctx, resp.PromptID, stranger, confirm.ButtonConfirm)
	assert.Equal(t, StatusRejected, other.Status)

	p, ok := f.engine.Prompt(resp.PromptID)
	require.True(t, ok)
	assert.Equal(t, confirm.StatePending, p.State())
	assert.Empty(t, f.launchedCommands())
}

func TestStart(t *testing.T) {
	t.Run("already awake", func(t *testing.T) {
		f := newFixture(t)
		f.watcher.Store(true)

		resp := f.engine.Handle(context.Background(), Request{Command: "start", CallerID: admin})
		assert.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, "Port Watcher is already awake.", resp.Message)
		assert.Empty(t, f.ranCommands())
	})

	t.Run("awakened", func(t *testing.T) {
		f := newFixture(t)
		f.runResult = &execution.RunResult{}

		done := make(chan *Response, 1)
		go func() {
			done <- f.engine.Handle(context.Background(), Request{Command: "start", CallerID: admin})
		}()
		f.clock.WaitForTimers(1)
		f.watcher.Store(true)

		final := drive(t, f.clock, 2*time.Second, done)
		assert.Equal(t, StatusOK, final.Status)
		assert.Equal(t, "Port Watcher Awakened...", final.Message)
		require.Len(t, f.ranCommands(), 1)
		assert.Equal(t, "Start-ScheduledTask", f.ranCommands()[0].Args[1])
	})

	t.Run("window never appears", func(t *testing.T) {
		f := newFixture(t)

		done := make(chan *Response, 1)
		go func() {
			done <- f.engine.Handle(context.Background(), Request{Command: "start", CallerID: admin})
		}()

		final := drive(t, f.clock, 2*time.Second, done)
		assert.Equal(t, StatusTimedOut, final.Status)
		assert.Equal(t, "Start Failed: Window did not appear.", final.Message)
	})

	t.Run("trigger fails", func(t *testing.T) {
		f := newFixture(t)
		f.runResult = &execution.RunResult{ExitCode: 1, Stderr: "task not found"}

		resp := f.engine.Handle(context.Background(), Request{Command: "start", CallerID: admin})
		assert.Equal(t, StatusFailed, resp.Status)
		assert.Contains(t, resp.Detail, "task not found")
	})
}

func TestLock(t *testing.T) {
	f := newFixture(t)
	f.cfg.Paths.PowershellProfile = `C:\Users\q\profile.ps1`

	resp := f.engine.Handle(context.Background(), Request{Command: "lock", CallerID: admin})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.Message, "QDRIVE Locked")
	require.Len(t, f.ranCommands(), 1)
	assert.Equal(t, `. 'C:\Users\q\profile.ps1'; QLOCK`, f.ranCommands()[0].Args[1])

	f.runResult = &execution.RunResult{Stderr: "QLOCK : The term 'QLOCK' is not recognized\r\n"}
	resp = f.engine.Handle(context.Background(), Request{Command: "lock", CallerID: admin})
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, "QLOCK : The term 'QLOCK' is not recognized", resp.Detail)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	resp := f.engine.Handle(context.Background(), Request{Command: "status", CallerID: admin})
	require.Equal(t, StatusOK, resp.Status)
	require.NotNil(t, resp.Report)
	assert.Equal(t, "Internal (C): 40 GB Free (40.0%)", resp.Report.Disks[0].String())
}

func TestAddKey(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid vault rejected without prompt", func(t *testing.T) {
		f := newFixture(t)
		resp := f.engine.Handle(ctx, Request{Command: "addkey", CallerID: admin, Args: []string{"root", sshKey}})
		assert.Equal(t, StatusRejected, resp.Status)
		assert.Equal(t, "Invalid vault selection.", resp.Message)
		assert.Empty(t, resp.PromptID)
		assert.Zero(t, f.clock.Pending())
	})

	t.Run("multi-line key rejected", func(t *testing.T) {
		f := newFixture(t)
		resp := f.engine.Handle(ctx, Request{Command: "addkey", CallerID: admin, Args: []string{"qdrive", sshKey + "\nssh-rsa other"}})
		assert.Equal(t, StatusRejected, resp.Status)
	})

	t.Run("missing args", func(t *testing.T) {
		f := newFixture(t)
		resp := f.engine.Handle(ctx, Request{Command: "addkey", CallerID: admin, Args: []string{"qdrive"}})
		assert.Equal(t, StatusRejected, resp.Status)
	})

	t.Run("confirmed injection", func(t *testing.T) {
		f := newFixture(t)
		resp := f.engine.Handle(ctx, Request{Command: "addkey", CallerID: admin, Args: []string{"QDriveAdmin", sshKey}})
		require.Equal(t, StatusAwaitingConfirmation, resp.Status)
		assert.Contains(t, resp.Message, "QDriveAdmin")

		_, err := os.Stat(f.cfg.Paths.VaultQDriveAdmin)
		assert.True(t, os.IsNotExist(err), "nothing written before confirmation")

		final := f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm)
		assert.Equal(t, StatusOK, final.Status)
		assert.Equal(t, "Key injected into QDriveAdmin.", final.Message)

		b, err := os.ReadFile(f.cfg.Paths.VaultQDriveAdmin)
		require.NoError(t, err)
		assert.Equal(t, sshKey+"\n", string(b))
	})

	t.Run("cancelled injection", func(t *testing.T) {
		f := newFixture(t)
		resp := f.engine.Handle(ctx, Request{Command: "addkey", CallerID: admin, Args: []string{"qdrive", sshKey}})
		final := f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonCancel)
		assert.Equal(t, StatusAborted, final.Status)
		assert.Equal(t, "Injection Aborted.", final.Message)

		_, err := os.Stat(f.cfg.Paths.VaultQDrive)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("deny", func(t *testing.T) {
		f := newFixture(t)
		resp := f.engine.Handle(ctx, Request{Command: "deny", CallerID: admin, Args: []string{"Photos"}})
		require.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, "Photos locked for 'QDRIVE'.", resp.Message)

		ran := f.ranCommands()
		require.Len(t, ran, 1)
		assert.Equal(t, "icacls", ran[0].Cmd)
		assert.Equal(t, filepath.Join(f.cfg.Paths.PortalDir, "Photos"), ran[0].Args[0])
		assert.Equal(t, []string{"/deny", "QDRIVE:(OI)(CI)(F)"}, ran[0].Args[1:])
	})

	t.Run("allow", func(t *testing.T) {
		f := newFixture(t)
		resp := f.engine.Handle(ctx, Request{Command: "allow", CallerID: admin, Args: []string{"Photos"}})
		require.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, "Photos unlocked for 'QDRIVE'.", resp.Message)
		assert.Equal(t, []string{"/remove:d", "QDRIVE"}, f.ranCommands()[0].Args[1:])
	})

	t.Run("traversal rejected", func(t *testing.T) {
		f := newFixture(t)
		for _, name := range []string{"..", "../Windows", `..\Windows`, "a/b", ""} {
			resp := f.engine.Handle(ctx, Request{Command: "deny", CallerID: admin, Args: []string{name}})
			assert.Equal(t, StatusRejected, resp.Status, name)
		}
		assert.Empty(t, f.ranCommands())
	})

	t.Run("failure shows stderr verbatim", func(t *testing.T) {
		f := newFixture(t)
		f.runResult = &execution.RunResult{ExitCode: 1332, Stderr: "No mapping between account names and security IDs was done.\r\n"}
		resp := f.engine.Handle(ctx, Request{Command: "deny", CallerID: admin, Args: []string{"Photos"}})
		assert.Equal(t, StatusFailed, resp.Status)
		assert.True(t, strings.HasPrefix(resp.Detail, "No mapping between account names"))
	})
}

func TestWatcherProbe(t *testing.T) {
	cfg := &storage.Config{}
	cfg.Watcher.Title = "Administrator: powershell"
	cfg.Watcher.Check = []string{"powershell", "-Command", `Get-Process | Where-Object {$_.MainWindowTitle -eq "{title}"}`}

	p, ok := WatcherProbe(cfg).(probe.CommandOutput)
	require.True(t, ok)
	assert.Equal(t, `Get-Process | Where-Object {$_.MainWindowTitle -eq "Administrator: powershell"}`, p.Argv[2])

	cfg.Watcher.ProcessName = "pwsh.exe"
	_, ok = WatcherProbe(cfg).(probe.ProcessName)
	assert.True(t, ok)
}

func TestHandle_RequirementTableDecidesConfirmation(t *testing.T) {
	reqs := security.DefaultRequirements()
	reqs[security.CommandLock] = security.Requirement{RequiresAuth: true, RequiresConfirm: true}
	reqs[security.CommandDeny] = security.Requirement{RequiresAuth: true, RequiresConfirm: true}
	f := newFixture(t, WithRequirements(reqs))
	ctx := context.Background()

	resp := f.engine.Handle(ctx, Request{Command: "lock", CallerID: admin})
	require.Equal(t, StatusAwaitingConfirmation, resp.Status)
	assert.Equal(t, "Lock QDRIVE?", resp.Message)
	assert.Empty(t, f.ranCommands(), "nothing runs before confirmation")

	final := f.engine.Press(ctx, resp.PromptID, admin, confirm.ButtonConfirm)
	assert.Equal(t, StatusOK, final.Status)
	assert.Len(t, f.ranCommands(), 1)

	// Validation still happens before a prompt is opened.
	bad := f.engine.Handle(ctx, Request{Command: "deny", CallerID: admin, Args: []string{"../etc"}})
	assert.Equal(t, StatusRejected, bad.Status)
	assert.Empty(t, bad.PromptID)

	deny := f.engine.Handle(ctx, Request{Command: "deny", CallerID: admin, Args: []string{"Photos"}})
	require.Equal(t, StatusAwaitingConfirmation, deny.Status)
	assert.Equal(t, "Deny QDRIVE access to Photos?", deny.Message)
}

func TestHandle_RequirementTableCanDropConfirmation(t *testing.T) {
	reqs := security.DefaultRequirements()
	reqs[security.CommandAddKey] = security.Requirement{RequiresAuth: true}
	f := newFixture(t, WithRequirements(reqs))

	resp := f.engine.Handle(context.Background(), Request{Command: "addkey", CallerID: admin, Args: []string{"qdrive", sshKey}})
	require.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.PromptID)

	data, err := os.ReadFile(f.cfg.Paths.VaultQDrive)
	require.NoError(t, err)
	assert.Equal(t, sshKey+"\n", string(data))
}
