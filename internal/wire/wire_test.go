package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chatsync/internal/model"
)

func TestDecode_NewMessage(t *testing.T) {
	ev, err := Decode([]byte(`{"NewMessage":{"counterparty":"bob","author":"bob","content":"hi","timestamp":100}}`))
	require.NoError(t, err)
	nm, ok := ev.(NewMessage)
	require.True(t, ok)
	assert.Equal(t, "bob", nm.Counterparty)
	assert.Equal(t, model.Message{Author: "bob", Content: "hi", Timestamp: 100}, nm.Message())
}

func TestDecode_NewMessageLegacyField(t *testing.T) {
	ev, err := Decode([]byte(`{"NewMessage":{"hyperware_chat":"bob","author":"bob","content":"hi","timestamp":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "bob", ev.(NewMessage).Counterparty)
}

func TestDecode_AllTags(t *testing.T) {
	tests := []struct {
		frame string
		want  Event
	}{
		{`{"NewGroupMessage":{"group_id":"g1","author":"a","content":"c","timestamp":2}}`,
			NewGroupMessage{GroupID: "g1", Author: "a", Content: "c", Timestamp: 2}},
		{`{"NewGroup":{"id":"g1","name":"G","members":["b","a","a"],"created_by":"a","created_at":5}}`,
			NewGroup{model.Group{ID: "g1", Name: "G", Members: []string{"a", "b"}, CreatedBy: "a", CreatedAt: 5}}},
		{`{"ContactAdded":{"id":"bob","name":"Bob"}}`, ContactAdded{model.Contact{ID: "bob", Name: "Bob"}}},
		{`{"ContactRemoved":{"id":"bob"}}`, ContactRemoved{ID: "bob"}},
		{`{"MemberAdded":{"group_id":"g1","member":"c"}}`, MemberChange{GroupID: "g1", Member: "c", Added: true}},
		{`{"MemberRemoved":{"group_id":"g1","member":"c"}}`, MemberChange{GroupID: "g1", Member: "c"}},
		{`{"Messages":{"bob":[{"author":"bob","content":"x","timestamp":1}]}}`,
			Messages{Chats: map[string][]model.Message{"bob": {{Author: "bob", Content: "x", Timestamp: 1}}}}},
		{`{"Messages":{}}`, Messages{Chats: map[string][]model.Message{}}},
		{`{"Contacts":[{"id":"a","name":"A"}]}`, Contacts{Contacts: []model.Contact{{ID: "a", Name: "A"}}}},
		{`{"Contacts":null}`, Contacts{Contacts: []model.Contact{}}},
		{`{"Groups":[]}`, Groups{Groups: []model.Group{}}},
		{`{"GroupMessages":{"group_id":"g1","messages":[]}}`, GroupMessages{GroupID: "g1", Messages: []model.Message{}}},
	}
	for _, tt := range tests {
		t.Run(tt.want.Tag(), func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecode_ParseErrors(t *testing.T) {
	frames := []string{
		`not json`,
		`[]`,
		`{}`,
		`{"NewMessage":{},"NewGroup":{}}`,
		`{"Bogus":{}}`,
		`{"NewMessage":null}`,
		`{"NewMessage":{"author":"bob","content":"hi"}}`,
		`{"NewMessage":{"counterparty":"bob","author":"bob","timestamp":"late"}}`,
		`{"NewGroup":{"name":"G"}}`,
		`{"ContactAdded":{"name":"nobody"}}`,
		`{"MemberAdded":{"group_id":"g1"}}`,
		`{"GroupMessages":{"messages":[]}}`,
	}
	for _, frame := range frames {
		t.Run(frame, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			require.Error(t, err)
			assert.True(t, model.IsParseError(err), "got %v", err)
		})
	}
}

func TestDecode_UnknownTagNamedInError(t *testing.T) {
	_, err := Decode([]byte(`{"Typing":{"who":"bob"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Typing")
}

func TestEncode_Commands(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Send{Target: "bob", Message: "hi"}, `{"Send":{"target":"bob","message":"hi"}}`},
		{GroupMessage{GroupID: "g1", Message: "yo"}, `{"GroupMessage":{"group_id":"g1","message":"yo"}}`},
		{CreateGroup{Name: "G", Members: []string{"a"}}, `{"CreateGroup":{"name":"G","members":["a"]}}`},
		{AddContact{ID: "a", Name: "A"}, `{"AddContact":{"id":"a","name":"A"}}`},
		{RemoveContact{ID: "a"}, `{"RemoveContact":{"id":"a"}}`},
		{GetMessages{}, `{"GetMessages":{}}`},
		{GetContacts{}, `{"GetContacts":{}}`},
		{GetGroups{}, `{"GetGroups":{}}`},
		{GetGroupMessages{GroupID: "g1"}, `{"GetGroupMessages":{"group_id":"g1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Tag(), func(t *testing.T) {
			data, err := Encode(tt.cmd)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode_EventsDecodeBack(t *testing.T) {
	events := []Event{
		NewGroup{model.Group{ID: "g1", Name: "G", Members: []string{"a"}, CreatedBy: "a"}},
		ContactAdded{model.Contact{ID: "a", Name: "A"}},
		Contacts{Contacts: []model.Contact{{ID: "a", Name: "A"}}},
	}
	for _, ev := range events {
		data, err := Encode(ev)
		require.NoError(t, err)
		back, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ev, back)
	}
}
