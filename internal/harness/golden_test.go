package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/chatsync/internal/model"
)

func TestRender_Format(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Seq: 1, Source: "local", Tag: "CreateGroup"},
		{Seq: 2, Source: "push", Tag: "NewGroup"},
	}
	result.Sent = []SentCommand{{Tag: "CreateGroup"}}

	v := model.Empty()
	v.Connected = true
	v.LastError = "TRANSPORT: boom"
	v.Contacts = []model.Contact{{ID: "bob", Name: "Bob"}}
	v.Groups = []model.Group{{ID: "g1", Name: "the team", Members: []string{"alice", "bob"}, CreatedBy: "alice"}}
	v.GroupMessages["g1"] = []model.Message{{Author: "alice", Content: "hi", Timestamp: 7}}
	v.GroupOrder = []string{"g1"}
	v.Chats["bob"] = nil
	v.DirectOrder = []string{"bob"}
	v.SelectedGroupID = "g1"
	v.Provisional = []model.Provisional{{TempID: "temp_0003", Kind: model.KindMessage, Target: "bob"}}
	result.View = v

	want := `scenario: render
trace:
  1 local CreateGroup
  2 push NewGroup
sent:
  CreateGroup
view:
  connected: true
  last_error: TRANSPORT: boom
  selection: chat= group=g1
  contacts:
    bob Bob
  groups:
    g1 "the team" by alice members=[alice bob]
  chats:
    bob (0)
  group_chats:
    g1 (1)
      alice@7: hi
  provisional:
    temp_0003 message bob
`
	assert.Equal(t, want, string(Render("render", result)))
}

func TestRender_EmptyResult(t *testing.T) {
	want := `scenario: empty
trace:
sent:
view:
  connected: false
  selection: chat= group=
  contacts:
  groups:
  chats:
  group_chats:
  provisional:
`
	assert.Equal(t, want, string(Render("empty", NewResult())))
}
