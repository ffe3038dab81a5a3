package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chatsync/internal/model"
)

func TestSupersede_MigratesMessagesAndSelection(t *testing.T) {
	s := New()
	s.Groups.Upsert("temp_1", model.Group{ID: "temp_1", Name: "G", CreatedBy: "alice"})
	s.GroupMessages.Append("temp_1", model.Message{Author: "alice", Content: "first"})
	s.SelectedGroupID = "temp_1"

	n := s.Supersede("temp_1", model.Group{ID: "g1", Name: "G", CreatedBy: "alice"})
	assert.Equal(t, 1, n)
	assert.False(t, s.Groups.Has("temp_1"))
	assert.False(t, s.GroupMessages.Has("temp_1"))
	require.True(t, s.Groups.Has("g1"))
	msgs, _ := s.GroupMessages.Get("g1")
	assert.Equal(t, []model.Message{{Author: "alice", Content: "first"}}, msgs)
	assert.Equal(t, "g1", s.SelectedGroupID)
}

func TestSupersede_AppendsAfterExistingConfirmedMessages(t *testing.T) {
	s := New()
	s.Groups.Upsert("temp_1", model.Group{ID: "temp_1"})
	s.GroupMessages.Append("g1", model.Message{Content: "server"})
	s.GroupMessages.Append("temp_1", model.Message{Content: "local"})

	s.Supersede("temp_1", model.Group{ID: "g1"})
	msgs, _ := s.GroupMessages.Get("g1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "server", msgs[0].Content)
	assert.Equal(t, "local", msgs[1].Content)
}

func TestSupersede_UnknownTempStillUpserts(t *testing.T) {
	s := New()
	n := s.Supersede("temp_missing", model.Group{ID: "g1"})
	assert.Zero(t, n)
	assert.True(t, s.Groups.Has("g1"))
	assert.True(t, s.GroupMessages.Has("g1"))
}
