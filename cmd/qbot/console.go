package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
	"github.com/Lin-Jiong-HDU/qbot/internal/render"
	"github.com/Lin-Jiong-HDU/qbot/internal/terminal"
)

// getConsoleCommand returns the interactive console command
func getConsoleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive operator console",
		Long: `Open an interactive console. Commands are typed as in chat,
confirmations are answered on the next line.`,
		Args: cobra.NoArgs,
		RunE: a.runConsole,
	}
}

func (a *app) runConsole(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	renderer, err := render.NewRenderer(renderWidth, a.plain)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	engine := core.NewEngine(a.cfg, core.WithLogger(a.logger))
	console := terminal.NewConsole(engine, a.caller, renderer, cmd.InOrStdin(), cmd.OutOrStdout())
	return console.Run(ctx)
}
