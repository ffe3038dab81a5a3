package cli

import (
	"context"
	"errors"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/roach88/chatsync/internal/tui"
)

// TUIOptions holds flags for the tui command.
type TUIOptions struct {
	*RootOptions
	ConnOptions
	LogFile string
}

// NewTUICommand creates the tui command.
func NewTUICommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TUIOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive terminal client",
		Long: `Start a sync session with an interactive terminal UI.

Arrow keys move between conversations, Enter sends the typed message to the
selected one. Lines starting with a slash are commands; /help lists them.
Logs go to --log-file since the terminal is taken by the UI.

Example:
  chatsync tui --db ./chat.db --self alice --ws ws://localhost:8080/ws --http http://localhost:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(opts, cmd)
		},
	}

	addConnFlags(cmd, &opts.ConnOptions)
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "chatsync.log", "write logs to this file (empty discards them)")

	return cmd
}

func runTUI(opts *TUIOptions, cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd, opts.RootOptions, &opts.ConnOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	var logOut io.Writer = io.Discard
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut, cfg.Log.Level)

	sess, err := openSession(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start session", err)
	}
	defer sess.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sess.serveMetrics(ctx)

	updates, unsubscribe := sess.coord.Subscribe()
	defer unsubscribe()

	loopDone := make(chan error, 1)
	go func() { loopDone <- sess.coord.Run(ctx) }()

	uiErr := tui.Run(ctx, sess.coord, updates, cfg.Self)
	cancel()
	loopErr := <-loopDone

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return WrapExitError(ExitFailure, "terminal ui error", uiErr)
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return WrapExitError(ExitFailure, "sync error", loopErr)
	}
	return nil
}
