package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chatsync/internal/engine"
	"github.com/roach88/chatsync/internal/store"
	"github.com/roach88/chatsync/internal/testutil"
)

// testRoot returns root options that ignore any .env file in the working
// directory.
func testRoot(format string) *RootOptions {
	return &RootOptions{Format: format}
}

// execute runs cmd with args and returns its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedDatabase drives a coordinator against a fresh database: a contact,
// a confirmed group, a direct exchange and one send that never confirms.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	clock := testutil.NewManualClockUnix(1_700_000_000)
	c := engine.New(st,
		engine.WithIdentity("alice"),
		engine.WithNow(clock.Now),
		engine.WithIDGenerator(testutil.NewSequentialIDs()),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ctx := context.Background()
	require.NoError(t, c.Restore(ctx))

	push := func(frame string) {
		require.NoError(t, c.Process(ctx, engine.Event{Type: engine.EventTypePush, Frame: []byte(frame)}))
	}

	push(`{"ContactAdded":{"id":"bob","name":"Bob"}}`)
	push(`{"NewMessage":{"counterparty":"bob","author":"bob","content":"hey","timestamp":1700000001}}`)
	c.Apply(ctx, engine.Action{Kind: engine.ActionCreateGroup, Name: "team", Members: []string{"bob"}})
	clock.Advance(5 * time.Second)
	push(`{"NewGroup":{"id":"g1","name":"team","members":["alice","bob"],"created_by":"alice","created_at":1700000005}}`)
	push(`{"NewGroupMessage":{"group_id":"g1","author":"bob","content":"standup?","timestamp":1700000006}}`)
	c.Apply(ctx, engine.Action{Kind: engine.ActionSendDirect, Target: "bob", Content: "on my way"})
	c.Apply(ctx, engine.Action{Kind: engine.ActionSelectGroup, Target: "g1"})

	return path
}
