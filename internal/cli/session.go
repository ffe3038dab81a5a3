package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/chatsync/internal/config"
	"github.com/roach88/chatsync/internal/engine"
	"github.com/roach88/chatsync/internal/metrics"
	"github.com/roach88/chatsync/internal/snapshot"
	"github.com/roach88/chatsync/internal/store"
	"github.com/roach88/chatsync/internal/transport"
)

// ConnOptions holds the flags shared by commands that connect to a server.
// A flag overrides the config file and environment only when it is set on
// the command line.
type ConnOptions struct {
	Database        string
	Self            string
	WSURL           string
	HTTPURL         string
	MetricsAddr     string
	RefreshInterval time.Duration
	Dedup           bool
}

func addConnFlags(cmd *cobra.Command, opts *ConnOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Self, "self", "", "local identity (author of optimistic writes)")
	cmd.Flags().StringVar(&opts.WSURL, "ws", "", "push WebSocket url (ws:// or wss://)")
	cmd.Flags().StringVar(&opts.HTTPURL, "http", "", "snapshot base url (http:// or https://)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.RefreshInterval, "refresh", 0, "re-fetch the snapshot at this interval (0 disables)")
	cmd.Flags().BoolVar(&opts.Dedup, "dedup", false, "drop exact duplicate pushed messages")
}

// loadConfig layers defaults, the config file, the dotenv file and
// CHATSYNC_* variables, in that order.
func loadConfig(root *RootOptions) (*config.Config, error) {
	if err := config.LoadDotenv(root.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	if _, err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfig loads the config and applies the flags that were set.
// Commands that register only --db leave the other fields untouched.
func resolveConfig(cmd *cobra.Command, root *RootOptions, conn *ConnOptions) (*config.Config, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB = conn.Database
	}
	if flags.Changed("self") {
		cfg.Self = conn.Self
	}
	if flags.Changed("ws") {
		cfg.Transport.WSURL = conn.WSURL
	}
	if flags.Changed("http") {
		cfg.Transport.HTTPURL = conn.HTTPURL
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = conn.MetricsAddr
	}
	if flags.Changed("refresh") {
		cfg.Transport.RefreshInterval = config.Duration(conn.RefreshInterval)
	}
	if flags.Changed("dedup") {
		cfg.Sync.Dedup = conn.Dedup
	}
	if root.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger: a text handler at the configured
// level.
func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// coordinatorOptions translates sync settings into engine options. Replay
// uses the same subset so a rebuilt view matches the live one.
func coordinatorOptions(cfg *config.Config) []engine.Option {
	opts := []engine.Option{
		engine.WithIdentity(cfg.Self),
		engine.WithMatchWindow(cfg.Sync.MatchWindow.Std()),
	}
	if cfg.Sync.ConflictAge > 0 {
		opts = append(opts, engine.WithConflictAge(cfg.Sync.ConflictAge.Std()))
	}
	if cfg.Sync.Dedup {
		opts = append(opts, engine.WithDedup())
	}
	return opts
}

// session owns everything a connected command needs.
type session struct {
	store   *store.Store
	coord   *engine.Coordinator
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     *config.Config
}

// openSession opens the database and wires the coordinator to the
// configured transport and snapshot endpoint.
func openSession(cfg *config.Config, logger *slog.Logger) (*session, error) {
	if cfg.Self == "" {
		return nil, errors.New("local identity is required (--self or CHATSYNC_SELF)")
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := metrics.New()
	opts := coordinatorOptions(cfg)
	opts = append(opts,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithRefreshInterval(cfg.Transport.RefreshInterval.Std()),
	)
	if cfg.Transport.WSURL != "" {
		opts = append(opts, engine.WithTransport(transport.NewClient(cfg.Transport.WSURL,
			transport.WithLogger(logger.With("component", "transport")),
		)))
	} else {
		logger.Warn("no push url configured; running offline")
	}
	if cfg.Transport.HTTPURL != "" {
		opts = append(opts, engine.WithFetcher(snapshot.NewClient(cfg.Transport.HTTPURL,
			snapshot.WithTimeout(cfg.Transport.Timeout.Std()),
			snapshot.WithLogger(logger.With("component", "snapshot")),
		)))
	}

	return &session{
		store:   st,
		coord:   engine.New(st, opts...),
		metrics: m,
		log:     logger,
		cfg:     cfg,
	}, nil
}

// serveMetrics exposes the session's registry when an address is set.
func (s *session) serveMetrics(ctx context.Context) {
	if s.cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, s.cfg.MetricsAddr, s.metrics); err != nil {
			s.log.Error("metrics server failed", "addr", s.cfg.MetricsAddr, "error", err)
		}
	}()
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("error closing database", "error", err)
	}
}
