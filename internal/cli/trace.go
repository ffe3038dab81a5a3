package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chatsync/internal/store"
	"github.com/roach88/chatsync/internal/wire"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	ConnOptions
	Source string // optional - filter to one event source
	Tag    string // optional - filter to one tag
	After  int64  // only events with seq > After
}

// TraceEntry is one committed event in the timeline.
type TraceEntry struct {
	Seq     int64           `json:"seq"`
	Source  string          `json:"source"`
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// Fingerprint identifies the message carried by a pushed message event.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// TraceResult holds the trace output.
type TraceResult struct {
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats counts the returned events per source.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Push        int `json:"push"`
	Snapshot    int `json:"snapshot"`
	Local       int `json:"local"`
	Transport   int `json:"transport"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the committed event log",
		Long: `Print the events the coordinator committed, in commit order.

Every state change is logged with its source (push, snapshot, local,
transport) and the payload that was applied. --verbose prints payloads.

Examples:
  chatsync trace --db ./chat.db
  chatsync trace --db ./chat.db --source push --tag NewGroup
  chatsync trace --db ./chat.db --after 120 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Source, "source", "", "filter to one source (push|snapshot|local|transport)")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "filter to one event tag")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events after this seq")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Source != "" && !validSource(opts.Source) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid source %q", opts.Source))
	}

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

	events, err := st.ReadEvents(ctx, opts.After)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}

	result := buildTrace(events, opts.Source, opts.Tag)

	f := newFormatter(opts.RootOptions, cmd)
	if f.JSON() {
		return f.Success(result)
	}
	outputTraceText(f, result)
	return nil
}

func validSource(s string) bool {
	switch store.Source(s) {
	case store.SourcePush, store.SourceSnapshot, store.SourceLocal, store.SourceTransport:
		return true
	}
	return false
}

// buildTrace filters events and tallies them per source.
func buildTrace(events []store.EventRecord, source, tag string) TraceResult {
	result := TraceResult{Timeline: []TraceEntry{}}
	for _, ev := range events {
		if source != "" && string(ev.Source) != source {
			continue
		}
		if tag != "" && ev.Tag != tag {
			continue
		}
		entry := TraceEntry{
			Seq:     ev.Seq,
			Source:  string(ev.Source),
			Tag:     ev.Tag,
			Payload: ev.Payload,
		}
		if ev.Source == store.SourcePush {
			entry.Fingerprint = messageFingerprint(ev.Tag, ev.Payload)
		}
		result.Timeline = append(result.Timeline, entry)

		switch ev.Source {
		case store.SourcePush:
			result.Stats.Push++
		case store.SourceSnapshot:
			result.Stats.Snapshot++
		case store.SourceLocal:
			result.Stats.Local++
		case store.SourceTransport:
			result.Stats.Transport++
		}
	}
	result.Stats.TotalEvents = len(result.Timeline)
	return result
}

// messageFingerprint returns the content fingerprint of a pushed message,
// or "" for other events.
func messageFingerprint(tag string, payload []byte) string {
	ev, err := wire.DecodePayload(tag, payload)
	if err != nil {
		return ""
	}
	switch e := ev.(type) {
	case wire.NewMessage:
		return e.Message().Fingerprint()
	case wire.NewGroupMessage:
		return e.Message().Fingerprint()
	}
	return ""
}

func outputTraceText(f *OutputFormatter, result TraceResult) {
	w := f.Writer
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	fmt.Fprintf(w, "Timeline (%d events):\n", result.Stats.TotalEvents)
	for _, e := range result.Timeline {
		if e.Fingerprint != "" {
			fmt.Fprintf(w, "  [%d] %-9s %s  msg:%s\n", e.Seq, e.Source, e.Tag, e.Fingerprint[:12])
		} else {
			fmt.Fprintf(w, "  [%d] %-9s %s\n", e.Seq, e.Source, e.Tag)
		}
		if f.Verbose {
			fmt.Fprintf(w, "        %s\n", e.Payload)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d push, %d snapshot, %d local, %d transport\n",
		result.Stats.Push, result.Stats.Snapshot, result.Stats.Local, result.Stats.Transport)
}
