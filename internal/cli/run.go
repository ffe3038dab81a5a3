package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/chatsync/internal/model"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConnOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless sync session",
		Long: `Connect to the chat server and keep the local view in sync.

The session restores the persisted view from the SQLite database (creating
it if it doesn't exist), subscribes to the push socket, fetches a snapshot
and then applies every event in delivery order, persisting after each one.

Example:
  chatsync run --db ./chat.db --self alice --ws ws://localhost:8080/ws --http http://localhost:8080
  chatsync run --config ./chatsync.yaml --refresh 5m --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	addConnFlags(cmd, &opts.ConnOptions)

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd, opts.RootOptions, &opts.ConnOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("opening database", "path", cfg.DB)
	sess, err := openSession(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start session", err)
	}
	defer sess.Close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sess.serveMetrics(ctx)

	updates, unsubscribe := sess.coord.Subscribe()
	defer unsubscribe()
	go logViews(logger, updates)

	fmt.Fprintln(cmd.OutOrStdout(), "Sync started. Listening for events...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := sess.coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "sync error", err)
	}

	logger.Info("sync stopped gracefully")
	return nil
}

// logViews logs a one-line summary of every published view until the
// channel closes.
func logViews(logger *slog.Logger, updates <-chan model.ViewModel) {
	for v := range updates {
		logger.Debug("view updated",
			"chats", len(v.Chats),
			"groups", len(v.Groups),
			"contacts", len(v.Contacts),
			"pending", len(v.Provisional),
			"connected", v.Connected,
		)
	}
}
