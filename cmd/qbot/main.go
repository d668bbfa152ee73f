package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lin-Jiong-HDU/qbot/internal/storage"
)

// app carries the root flags and what PersistentPreRunE loaded.
type app struct {
	configPath string
	caller     string
	noTUI      bool
	plain      bool

	cfg    *storage.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "qbot",
		Short: "Remote operations for the QDRIVE host",
		Long: `qbot runs maintenance, port watcher and access control operations
on the QDRIVE host, gated by a single privileged identity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./config.json)")
	root.PersistentFlags().StringVar(&a.caller, "as", os.Getenv("QBOT_CALLER"), "caller id (default $QBOT_CALLER)")
	root.PersistentFlags().BoolVar(&a.noTUI, "no-tui", false, "answer confirmations on a plain line prompt")
	root.PersistentFlags().BoolVar(&a.plain, "plain", false, "disable markdown rendering")

	root.AddCommand(getServeCommand(a))
	root.AddCommand(getConsoleCommand(a))
	root.AddCommand(getOperationCommands(a)...)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := storage.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = storage.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
