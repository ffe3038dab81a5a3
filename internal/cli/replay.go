package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/chatsync/internal/engine"
	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	ConnOptions
}

// ReplayResult holds the replay verification result.
type ReplayResult struct {
	Events      int            `json:"events"`
	LastSeq     int64          `json:"last_seq"`
	ByTag       map[string]int `json:"by_tag"`
	Consistent  bool           `json:"consistent"`
	Differences []string       `json:"differences,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the view from the event log and verify it",
		Long: `Replay the event log from an empty state and compare the result with
the persisted view.

The replay uses the identity and sync options from the config (--self,
--dedup), which must match the ones the log was recorded under.

Exit codes:
  0 - Replayed view matches the persisted one
  1 - Views differ
  2 - Command error (database not found, etc.)

Examples:
  chatsync replay --db ./chat.db --self alice
  chatsync replay --db ./chat.db --self alice --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Self, "self", "", "identity the log was recorded under")
	cmd.Flags().BoolVar(&opts.Dedup, "dedup", false, "the log was recorded with duplicate suppression")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	cfg, err := resolveConfig(cmd, opts.RootOptions, &opts.ConnOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", cfg.DB))
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	persisted, seq, found, err := st.Load(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}
	events, err := st.ReadEvents(ctx, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}
	counts, err := st.CountEvents(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}

	result := ReplayResult{
		Events:   len(events),
		LastSeq:  seq,
		ByTag:    counts,
	}

	if !found && len(events) == 0 {
		result.Consistent = true
		return outputReplay(cmd, opts, result)
	}

	replayed, err := engine.Replay(ctx, events, coordinatorOptions(cfg)...)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}
	result.Differences = diffViews(persisted, replayed)
	result.Consistent = len(result.Differences) == 0

	return outputReplay(cmd, opts, result)
}

// diffViews lists the families where got differs from want. Nil and empty
// collections are equal.
func diffViews(want, got model.ViewModel) []string {
	var diffs []string
	note := func(ok bool, family string) {
		if !ok {
			diffs = append(diffs, family)
		}
	}

	note(slices.Equal(want.Contacts, got.Contacts), "contacts")
	note(slices.EqualFunc(want.Groups, got.Groups, groupsEqual), "groups")
	note(slices.Equal(want.DirectOrder, got.DirectOrder), "chat order")
	note(conversationsEqual(want.Chats, got.Chats), "chats")
	note(slices.Equal(want.GroupOrder, got.GroupOrder), "group chat order")
	note(conversationsEqual(want.GroupMessages, got.GroupMessages), "group messages")
	note(want.SelectedChatID == got.SelectedChatID && want.SelectedGroupID == got.SelectedGroupID, "selection")
	note(slices.EqualFunc(want.Provisional, got.Provisional, provisionalEqual), "provisional")
	note(want.Connected == got.Connected && want.LastError == got.LastError, "status")
	return diffs
}

func groupsEqual(a, b model.Group) bool {
	return a.ID == b.ID && a.Name == b.Name && a.CreatedBy == b.CreatedBy &&
		a.CreatedAt == b.CreatedAt && slices.Equal(a.Members, b.Members)
}

func provisionalEqual(a, b model.Provisional) bool {
	if a.TempID != b.TempID || a.Kind != b.Kind || a.Target != b.Target ||
		a.Group != b.Group || a.CreatedAt != b.CreatedAt {
		return false
	}
	if a.Message == nil || b.Message == nil {
		return a.Message == nil && b.Message == nil
	}
	return *a.Message == *b.Message
}

func conversationsEqual(a, b map[string][]model.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for k, msgs := range a {
		other, ok := b[k]
		if !ok || !slices.Equal(msgs, other) {
			return false
		}
	}
	return true
}

func outputReplay(cmd *cobra.Command, opts *ReplayOptions, result ReplayResult) error {
	const mismatch = "replayed view differs from persisted view"
	f := newFormatter(opts.RootOptions, cmd)

	switch {
	case f.JSON() && result.Consistent:
		return f.Success(result)
	case f.JSON():
		if err := f.Failure(result, CodeReplayMismatch, mismatch, result.Differences); err != nil {
			return err
		}
	default:
		outputReplayText(cmd, opts, result)
	}

	if !result.Consistent {
		return NewExitError(ExitFailure, mismatch)
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, opts *ReplayOptions, result ReplayResult) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d event(s), last seq %d\n", result.Events, result.LastSeq)
	if opts.Verbose {
		tags := make([]string, 0, len(result.ByTag))
		for tag := range result.ByTag {
			tags = append(tags, tag)
		}
		slices.Sort(tags)
		for _, tag := range tags {
			fmt.Fprintf(w, "  %s: %d\n", tag, result.ByTag[tag])
		}
	}
	fmt.Fprintln(w)

	if result.Consistent {
		fmt.Fprintln(w, "✓ Replayed view matches persisted view")
		return
	}
	fmt.Fprintln(w, "✗ Replayed view differs from persisted view")
	for _, d := range result.Differences {
		fmt.Fprintf(w, "  differs: %s\n", d)
	}
}
