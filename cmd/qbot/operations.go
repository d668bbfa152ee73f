package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/qbot/internal/core"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/qbot/internal/core/tui"
	"github.com/Lin-Jiong-HDU/qbot/internal/render"
	"github.com/Lin-Jiong-HDU/qbot/internal/terminal"
)

const renderWidth = 80

// getOperationCommands returns one subcommand per engine command
func getOperationCommands(a *app) []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "lookup",
			Short: "Show public IP, SSH port and service readiness",
			Args:  cobra.NoArgs,
			RunE:  a.runOperation("lookup"),
		},
		{
			Use:   "restart",
			Short: "Trigger weekly maintenance and wait for it to finish",
			Args:  cobra.NoArgs,
			RunE:  a.runOperation("restart"),
		},
		{
			Use:   "start",
			Short: "Awaken the port watcher",
			Args:  cobra.NoArgs,
			RunE:  a.runOperation("start"),
		},
		{
			Use:   "lock",
			Short: "Stop the port watcher and take QDRIVE offline",
			Args:  cobra.NoArgs,
			RunE:  a.runOperation("lock"),
		},
		{
			Use:   "status",
			Short: "Report storage levels and watchdog state",
			Args:  cobra.NoArgs,
			RunE:  a.runOperation("status"),
		},
		{
			Use:   "addkey <vault> <key>",
			Short: "Append a public key to a vault",
			Long: `Append a single-line public key to one of the vaults.

The key may be passed quoted or as the remaining arguments.`,
			Args: cobra.MinimumNArgs(2),
			RunE: a.runOperation("addkey"),
		},
		{
			Use:   "deny <folder>",
			Short: "Deny the drive account access to a portal folder",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.runOperation("deny"),
		},
		{
			Use:   "allow <folder>",
			Short: "Restore the drive account's access to a portal folder",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.runOperation("allow"),
		},
	}
}

// operationArgs joins trailing words so keys and folder names may be
// passed unquoted.
func operationArgs(name string, args []string) []string {
	switch name {
	case "addkey":
		return []string{args[0], strings.Join(args[1:], " ")}
	case "deny", "allow":
		return []string{strings.Join(args, " ")}
	default:
		return args
	}
}

func (a *app) runOperation(name string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		renderer, err := render.NewRenderer(renderWidth, a.plain)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}

		engine := core.NewEngine(a.cfg, core.WithLogger(a.logger))
		req := core.Request{
			Command:  name,
			CallerID: a.caller,
			Args:     operationArgs(name, args),
		}

		resp := terminal.Execute(cmd.Context(), engine, req, a.asker(cmd))
		fmt.Fprint(cmd.OutOrStdout(), renderer.RenderResponse(resp))

		if !resp.Succeeded() {
			return fmt.Errorf("%s: %s", name, resp.Status)
		}
		return nil
	}
}

func (a *app) asker(cmd *cobra.Command) terminal.Asker {
	if !a.noTUI {
		return tui.Ask
	}
	return func(p *confirm.Prompt) (confirm.Button, bool, error) {
		return terminal.ConfirmWithIO(p, cmd.InOrStdin(), cmd.OutOrStdout())
	}
}
