package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/execution"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/heartbeat"
	"github.com/Lin-Jiong-HDU/qbot/internal/link"
	"github.com/Lin-Jiong-HDU/qbot/internal/metrics"
	"github.com/Lin-Jiong-HDU/qbot/internal/server"
)

// getServeCommand returns the daemon command
func getServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP surface and the heartbeat",
		Long: `Serve the command surface over HTTP. The heartbeat starts once
the listener is up and keeps writing while it stays up.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	state := &link.State{}
	monitor := heartbeat.NewMonitor(a.cfg.Paths.HealthFile, state,
		heartbeat.WithInterval(a.cfg.Schedule.HeartbeatInterval),
		heartbeat.WithLogger(a.logger),
		heartbeat.WithObserver(m),
	)
	state.OnReady(func() { monitor.Start(ctx) })

	engine := core.NewEngine(a.cfg,
		core.WithLogger(a.logger),
		core.WithObserver(m),
		core.WithExecutorOptions(execution.WithObserver(m)),
	)

	srv := server.New(a.cfg.Server, a.cfg.Bot.Token, engine,
		server.WithGatherer(reg),
		server.WithLink(state),
		server.WithLogger(a.logger),
	)

	a.logger.Info("qbot starting", "config", a.cfg.String())
	return srv.ListenAndServe(ctx)
}
