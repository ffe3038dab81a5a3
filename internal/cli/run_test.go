package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chatsync/internal/store"
)

func TestRunRequiresIdentity(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")
	cmd := NewRunCommand(testRoot("text"))

	_, err := execute(t, cmd, "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local identity is required")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunRejectsArgs(t *testing.T) {
	cmd := NewRunCommand(testRoot("text"))
	_, err := execute(t, cmd, "extra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRunInvalidRefresh(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")
	cmd := NewRunCommand(testRoot("text"))

	_, err := execute(t, cmd, "--db", dbPath, "--self", "alice", "--refresh", "-1s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh interval must not be negative")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunOfflineUntilCancelled(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := NewRunCommand(testRoot("text"))
	cmd.SetContext(ctx)
	out, err := execute(t, cmd, "--db", dbPath, "--self", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync started")

	// The database was created and is readable.
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	_, _, _, err = st.Load(context.Background())
	require.NoError(t, err)
}

func TestRunRestoresExistingState(t *testing.T) {
	dbPath := seedDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	cmd := NewRunCommand(testRoot("text"))
	cmd.SetContext(ctx)
	_, err := execute(t, cmd, "--db", dbPath, "--self", "alice")
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	view, _, found, err := st.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, view.Contacts, 1, "restored state survives a session")
	assert.Equal(t, "g1", view.SelectedGroupID)
}
