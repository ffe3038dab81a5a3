package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	ConnOptions
	Chat  string // print one direct conversation in full
	Group string // print one group conversation in full
}

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	Seq  int64           `json:"seq"`
	View model.ViewModel `json:"view"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted view",
		Long: `Print the view model persisted in the database.

Without --chat or --group, prints a summary of every family. With one of
them, prints that conversation's full history.

Examples:
  chatsync show --db ./chat.db
  chatsync show --db ./chat.db --chat bob
  chatsync show --db ./chat.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Chat, "chat", "", "print the direct conversation with this counterparty")
	cmd.Flags().StringVar(&opts.Group, "group", "", "print the conversation of this group")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	if opts.Chat != "" && opts.Group != "" {
		return NewExitError(ExitCommandError, "--chat and --group are mutually exclusive")
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

	view, seq, _, err := st.Load(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}

	f := newFormatter(opts.RootOptions, cmd)
	switch {
	case opts.Chat != "":
		msgs, ok := view.Chats[opts.Chat]
		if !ok {
			return notFound(f, fmt.Sprintf("no conversation with %q", opts.Chat))
		}
		return showMessages(f, opts.Chat, msgs)
	case opts.Group != "":
		msgs, ok := view.GroupMessages[opts.Group]
		if !ok {
			return notFound(f, fmt.Sprintf("no conversation for group %q", opts.Group))
		}
		return showMessages(f, opts.Group, msgs)
	}

	if f.JSON() {
		return f.Success(ShowResult{Seq: seq, View: view})
	}
	writeViewSummary(f.Writer, seq, view)
	return nil
}

func notFound(f *OutputFormatter, msg string) error {
	if err := f.Error(CodeNotFound, msg, nil); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// ConversationResult is the JSON payload of show --chat / --group.
type ConversationResult struct {
	Key      string          `json:"key"`
	Messages []model.Message `json:"messages"`
}

func showMessages(f *OutputFormatter, key string, msgs []model.Message) error {
	if f.JSON() {
		return f.Success(ConversationResult{Key: key, Messages: msgs})
	}
	w := f.Writer
	fmt.Fprintf(w, "%s (%d messages)\n", key, len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(w, "  [%d] %s: %s\n", m.Timestamp, m.Author, m.Content)
	}
	return nil
}

// writeViewSummary prints one line per entity, in view order.
func writeViewSummary(w io.Writer, seq int64, v model.ViewModel) {
	fmt.Fprintf(w, "State at seq %d\n", seq)
	status := "disconnected"
	if v.Connected {
		status = "connected"
	}
	if v.LastError != "" {
		status += " (" + v.LastError + ")"
	}
	fmt.Fprintf(w, "Status: %s\n", status)

	switch {
	case v.SelectedChatID != "":
		fmt.Fprintf(w, "Selected: chat %s\n", v.SelectedChatID)
	case v.SelectedGroupID != "":
		fmt.Fprintf(w, "Selected: group %s\n", v.SelectedGroupID)
	default:
		fmt.Fprintln(w, "Selected: none")
	}

	fmt.Fprintf(w, "\nContacts (%d):\n", len(v.Contacts))
	for _, c := range v.Contacts {
		fmt.Fprintf(w, "  %s  %s\n", c.ID, c.Name)
	}

	fmt.Fprintf(w, "\nGroups (%d):\n", len(v.Groups))
	for _, g := range v.Groups {
		marker := ""
		if model.IsTempID(g.ID) {
			marker = "  (pending)"
		}
		fmt.Fprintf(w, "  %s  %s  [%s]%s\n", g.ID, g.Name, strings.Join(g.Members, " "), marker)
	}

	fmt.Fprintf(w, "\nChats (%d):\n", len(v.DirectOrder))
	for _, key := range v.DirectOrder {
		writeConversationLine(w, key, v.Chats[key])
	}

	fmt.Fprintf(w, "\nGroup chats (%d):\n", len(v.GroupOrder))
	for _, id := range v.GroupOrder {
		writeConversationLine(w, id, v.GroupMessages[id])
	}

	if len(v.Provisional) > 0 {
		fmt.Fprintf(w, "\nPending (%d):\n", len(v.Provisional))
		for _, p := range v.Provisional {
			fmt.Fprintf(w, "  %s  %s -> %s  (created %s)\n",
				p.TempID, p.Kind, p.Target, humanize.Time(time.Unix(p.CreatedAt, 0)))
		}
	}
}

func writeConversationLine(w io.Writer, key string, msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Fprintf(w, "  %s  (empty)\n", key)
		return
	}
	last := msgs[len(msgs)-1]
	fmt.Fprintf(w, "  %s  %d messages, last %s: %s\n", key, len(msgs), last.Author, last.Content)
}
