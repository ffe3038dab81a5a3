package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowSummary(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, NewShowCommand(testRoot("text")), "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Status: disconnected")
	assert.Contains(t, out, "Selected: group g1")
	assert.Contains(t, out, "Contacts (1):\n  bob  Bob\n")
	assert.Contains(t, out, "g1  team  [alice bob]")
	assert.Contains(t, out, "bob  2 messages, last alice: on my way")
	assert.Contains(t, out, "g1  1 messages, last bob: standup?")
	assert.Contains(t, out, "Pending (1):\n  temp_0002  message -> bob  (created ")
}

func TestShowJSON(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, NewShowCommand(testRoot("json")), "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Positive(t, resp.Data.Seq)
	assert.Equal(t, "g1", resp.Data.View.SelectedGroupID)
	assert.Len(t, resp.Data.View.Chats["bob"], 2)
}

func TestShowConversation(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, NewShowCommand(testRoot("text")), "--db", dbPath, "--chat", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob (2 messages)\n"+
		"  [1700000001] bob: hey\n"+
		"  [1700000005] alice: on my way\n", out)

	out, err = execute(t, NewShowCommand(testRoot("json")), "--db", dbPath, "--group", "g1")
	require.NoError(t, err)
	var resp struct {
		Data ConversationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "g1", resp.Data.Key)
	require.Len(t, resp.Data.Messages, 1)
	assert.Equal(t, "standup?", resp.Data.Messages[0].Content)
}

func TestShowErrors(t *testing.T) {
	dbPath := seedDatabase(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"unknown chat", []string{"--db", dbPath, "--chat", "zed"}, ExitFailure, `no conversation with "zed"`},
		{"unknown group", []string{"--db", dbPath, "--group", "g9"}, ExitFailure, `no conversation for group "g9"`},
		{"both targets", []string{"--db", dbPath, "--chat", "bob", "--group", "g1"}, ExitCommandError, "mutually exclusive"},
		{"missing database", []string{"--db", filepath.Join(t.TempDir(), "nope.db")}, ExitCommandError, "database not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewShowCommand(testRoot("text")), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
		})
	}
}
