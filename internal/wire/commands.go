package wire

import (
	"encoding/json"
	"fmt"
)

// Outbound tags.
const (
	TagSend             = "Send"
	TagGroupMessage     = "GroupMessage"
	TagCreateGroup      = "CreateGroup"
	TagAddContact       = "AddContact"
	TagRemoveContact    = "RemoveContact"
	TagGetMessages      = "GetMessages"
	TagGetContacts      = "GetContacts"
	TagGetGroups        = "GetGroups"
	TagGetGroupMessages = "GetGroupMessages"
)

// Command is an outbound frame.
type Command interface {
	Tag() string
}

// Send sends a direct message.
type Send struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

// GroupMessage sends a message to a group.
type GroupMessage struct {
	GroupID string `json:"group_id"`
	Message string `json:"message"`
}

// CreateGroup asks the server to create a group.
type CreateGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// AddContact asks the server to add a contact.
type AddContact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemoveContact asks the server to remove a contact.
type RemoveContact struct {
	ID string `json:"id"`
}

// GetMessages pulls the direct message history.
type GetMessages struct{}

// GetContacts pulls the contact list.
type GetContacts struct{}

// GetGroups pulls the group list.
type GetGroups struct{}

// GetGroupMessages pulls one group's history.
type GetGroupMessages struct {
	GroupID string `json:"group_id"`
}

func (Send) Tag() string             { return TagSend }
func (GroupMessage) Tag() string     { return TagGroupMessage }
func (CreateGroup) Tag() string      { return TagCreateGroup }
func (AddContact) Tag() string       { return TagAddContact }
func (RemoveContact) Tag() string    { return TagRemoveContact }
func (GetMessages) Tag() string      { return TagGetMessages }
func (GetContacts) Tag() string      { return TagGetContacts }
func (GetGroups) Tag() string        { return TagGetGroups }
func (GetGroupMessages) Tag() string { return TagGetGroupMessages }

// Encode renders any tagged value (Command or Event) as a single-key frame.
func Encode(v interface{ Tag() string }) ([]byte, error) {
	var payload any = v
	switch e := v.(type) {
	case NewGroup:
		payload = e.Group
	case ContactAdded:
		payload = e.Contact
	case Messages:
		payload = e.Chats
	case Contacts:
		payload = e.Contacts
	case Groups:
		payload = e.Groups
	}
	data, err := json.Marshal(map[string]any{v.Tag(): payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", v.Tag(), err)
	}
	return data, nil
}
