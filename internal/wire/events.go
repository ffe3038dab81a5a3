package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/chatsync/internal/model"
)

// Inbound tags.
const (
	TagNewMessage      = "NewMessage"
	TagNewGroupMessage = "NewGroupMessage"
	TagNewGroup        = "NewGroup"
	TagContactAdded    = "ContactAdded"
	TagContactRemoved  = "ContactRemoved"
	TagMemberAdded     = "MemberAdded"
	TagMemberRemoved   = "MemberRemoved"
	TagMessages        = "Messages"
	TagContacts        = "Contacts"
	TagGroups          = "Groups"
	TagGroupMessages   = "GroupMessages"
)

// Event is an inbound push frame. The set of implementations is closed.
type Event interface {
	Tag() string
	isEvent()
}

// NewMessage is a direct message pushed by the server.
type NewMessage struct {
	Counterparty string `json:"counterparty"`
	Author       string `json:"author"`
	Content      string `json:"content"`
	Timestamp    int64  `json:"timestamp"`
}

// Message returns the message body.
func (e NewMessage) Message() model.Message {
	return model.Message{Author: e.Author, Content: e.Content, Timestamp: e.Timestamp}
}

// NewGroupMessage is a group message pushed by the server.
type NewGroupMessage struct {
	GroupID   string `json:"group_id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Message returns the message body.
func (e NewGroupMessage) Message() model.Message {
	return model.Message{Author: e.Author, Content: e.Content, Timestamp: e.Timestamp}
}

// NewGroup announces a confirmed group.
type NewGroup struct {
	model.Group
}

// ContactAdded announces a contact.
type ContactAdded struct {
	model.Contact
}

// ContactRemoved announces a contact removal.
type ContactRemoved struct {
	ID string `json:"id"`
}

// MemberChange announces a membership change for a group.
type MemberChange struct {
	GroupID string `json:"group_id"`
	Member  string `json:"member"`
	Added   bool   `json:"-"`
}

// Messages is the bulk direct message history.
type Messages struct {
	Chats map[string][]model.Message
}

// Contacts is the bulk contact list.
type Contacts struct {
	Contacts []model.Contact
}

// Groups is the bulk group list.
type Groups struct {
	Groups []model.Group
}

// GroupMessages is the bulk history of one group.
type GroupMessages struct {
	GroupID  string          `json:"group_id"`
	Messages []model.Message `json:"messages"`
}

func (NewMessage) Tag() string      { return TagNewMessage }
func (NewGroupMessage) Tag() string { return TagNewGroupMessage }
func (NewGroup) Tag() string        { return TagNewGroup }
func (ContactAdded) Tag() string    { return TagContactAdded }
func (ContactRemoved) Tag() string  { return TagContactRemoved }
func (Messages) Tag() string        { return TagMessages }
func (Contacts) Tag() string        { return TagContacts }
func (Groups) Tag() string          { return TagGroups }
func (GroupMessages) Tag() string   { return TagGroupMessages }

// Tag returns MemberAdded or MemberRemoved.
func (e MemberChange) Tag() string {
	if e.Added {
		return TagMemberAdded
	}
	return TagMemberRemoved
}

func (NewMessage) isEvent()      {}
func (NewGroupMessage) isEvent() {}
func (NewGroup) isEvent()        {}
func (ContactAdded) isEvent()    {}
func (ContactRemoved) isEvent()  {}
func (MemberChange) isEvent()    {}
func (Messages) isEvent()        {}
func (Contacts) isEvent()        {}
func (Groups) isEvent()          {}
func (GroupMessages) isEvent()   {}

// SplitFrame returns the tag and raw payload of a single-key frame.
func SplitFrame(data []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, model.NewParseError("", "frame is not a JSON object", err)
	}
	if len(obj) != 1 {
		return "", nil, model.NewParseError("", fmt.Sprintf("frame has %d keys, want exactly 1", len(obj)), nil)
	}
	for tag, payload := range obj {
		return tag, payload, nil
	}
	return "", nil, model.NewParseError("", "empty frame", nil)
}

// Decode parses one inbound frame.
func Decode(data []byte) (Event, error) {
	tag, payload, err := SplitFrame(data)
	if err != nil {
		return nil, err
	}
	return DecodePayload(tag, payload)
}

// DecodePayload parses the payload of a frame with a known tag.
func DecodePayload(tag string, payload []byte) (Event, error) {
	fail := func(msg string, err error) (Event, error) {
		return nil, model.NewParseError(tag, msg, err)
	}
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		switch tag {
		case TagMessages, TagContacts, TagGroups:
			// An empty bulk answer is legal.
		default:
			return fail("missing payload", nil)
		}
	}

	switch tag {
	case TagNewMessage:
		var raw struct {
			NewMessage
			Legacy string `json:"hyperware_chat"`
		}
		if err := json.Unmarshal(payload, &raw); err != nil {
			return fail("malformed payload", err)
		}
		e := raw.NewMessage
		if e.Counterparty == "" {
			e.Counterparty = raw.Legacy
		}
		if e.Counterparty == "" || e.Author == "" {
			return fail("counterparty and author are required", nil)
		}
		return e, nil

	case TagNewGroupMessage:
		var e NewGroupMessage
		if err := json.Unmarshal(payload, &e); err != nil {
			return fail("malformed payload", err)
		}
		if e.GroupID == "" || e.Author == "" {
			return fail("group_id and author are required", nil)
		}
		return e, nil

	case TagNewGroup:
		var e NewGroup
		if err := json.Unmarshal(payload, &e.Group); err != nil {
			return fail("malformed payload", err)
		}
		if e.ID == "" || e.Name == "" {
			return fail("id and name are required", nil)
		}
		e.Members = model.NormalizeMembers(e.Members)
		return e, nil

	case TagContactAdded:
		var e ContactAdded
		if err := json.Unmarshal(payload, &e.Contact); err != nil {
			return fail("malformed payload", err)
		}
		if e.ID == "" {
			return fail("id is required", nil)
		}
		return e, nil

	case TagContactRemoved:
		var e ContactRemoved
		if err := json.Unmarshal(payload, &e); err != nil {
			return fail("malformed payload", err)
		}
		if e.ID == "" {
			return fail("id is required", nil)
		}
		return e, nil

	case TagMemberAdded, TagMemberRemoved:
		var e MemberChange
		if err := json.Unmarshal(payload, &e); err != nil {
			return fail("malformed payload", err)
		}
		if e.GroupID == "" || e.Member == "" {
			return fail("group_id and member are required", nil)
		}
		e.Added = tag == TagMemberAdded
		return e, nil

	case TagMessages:
		e := Messages{Chats: map[string][]model.Message{}}
		if err := unmarshalOptional(payload, &e.Chats); err != nil {
			return fail("malformed payload", err)
		}
		return e, nil

	case TagContacts:
		var e Contacts
		if err := unmarshalOptional(payload, &e.Contacts); err != nil {
			return fail("malformed payload", err)
		}
		if e.Contacts == nil {
			e.Contacts = []model.Contact{}
		}
		return e, nil

	case TagGroups:
		var e Groups
		if err := unmarshalOptional(payload, &e.Groups); err != nil {
			return fail("malformed payload", err)
		}
		if e.Groups == nil {
			e.Groups = []model.Group{}
		}
		return e, nil

	case TagGroupMessages:
		var e GroupMessages
		if err := json.Unmarshal(payload, &e); err != nil {
			return fail("malformed payload", err)
		}
		if e.GroupID == "" {
			return fail("group_id is required", nil)
		}
		if e.Messages == nil {
			e.Messages = []model.Message{}
		}
		return e, nil

	default:
		return fail("unknown tag", nil)
	}
}

func unmarshalOptional(payload []byte, v any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(payload, v)
}
