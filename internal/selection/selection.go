// Package selection tracks the active conversation.
//
// States: NoSelection, DirectSelected(key), GroupSelected(id). Selecting one
// kind clears the other; no other transitions exist.
package selection

import (
	"fmt"

	"github.com/roach88/chatsync/internal/state"
)

// Kind is the selection state.
type Kind int

const (
	// None means nothing is selected.
	None Kind = iota
	// Direct means a direct conversation is selected.
	Direct
	// Group means a group conversation is selected.
	Group
)

// String returns the state name.
func (k Kind) String() string {
	switch k {
	case None:
		return "NoSelection"
	case Direct:
		return "DirectSelected"
	case Group:
		return "GroupSelected"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Selection is an immutable view of the selection state.
type Selection struct {
	Kind Kind
	ID   string
}

// String renders the selection like DirectSelected(bob).
func (s Selection) String() string {
	if s.Kind == None {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.ID)
}

// Controller enforces selection exclusivity on a State. The selected ids live
// on the state so they are persisted with it.
type Controller struct {
	st *state.State
}

// New creates a Controller over st.
func New(st *state.State) *Controller {
	return &Controller{st: st}
}

// Current returns the selection state.
func (c *Controller) Current() Selection {
	switch {
	case c.st.SelectedGroupID != "":
		return Selection{Kind: Group, ID: c.st.SelectedGroupID}
	case c.st.SelectedChatID != "":
		return Selection{Kind: Direct, ID: c.st.SelectedChatID}
	default:
		return Selection{Kind: None}
	}
}

// SelectDirect selects the direct conversation key and clears any group.
// An unknown key creates an empty conversation (the "start new chat" flow).
// Returns true if a conversation was created.
func (c *Controller) SelectDirect(key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("select direct: empty key")
	}
	c.st.SelectedGroupID = ""
	c.st.SelectedChatID = key
	return c.st.Chats.Ensure(key), nil
}

// SelectGroup selects group id and clears any direct conversation.
// An unknown id gets an empty message sequence.
func (c *Controller) SelectGroup(id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("select group: empty id")
	}
	c.st.SelectedChatID = ""
	c.st.SelectedGroupID = id
	return c.st.GroupMessages.Ensure(id), nil
}

// Clear returns to NoSelection.
func (c *Controller) Clear() {
	c.st.SelectedChatID = ""
	c.st.SelectedGroupID = ""
}
