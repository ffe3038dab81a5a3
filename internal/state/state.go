// Package state holds the canonical entity tables of a chat client.
//
// A State is owned by exactly one sync coordinator. The reconciler, the
// optimistic tracker and the selection controller act on it through their own
// contracts; presentation only ever sees a ViewModel copy.
package state

import (
	"slices"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/table"
)

// State is the mutable, owned form of the view model.
type State struct {
	Chats         *table.Seq[string, model.Message]
	Groups        *table.Table[string, model.Group]
	GroupMessages *table.Seq[string, model.Message]
	Contacts      *table.Table[string, model.Contact]

	SelectedChatID  string
	SelectedGroupID string

	Connected bool
	LastError string
}

// New creates an empty state.
func New() *State {
	return &State{
		Chats:         table.NewSeq[string, model.Message](),
		Groups:        table.New[string, model.Group](),
		GroupMessages: table.NewSeq[string, model.Message](),
		Contacts:      table.New[string, model.Contact](),
	}
}

// FromView rebuilds a state from a persisted view model, verbatim.
//
// Conversation order follows DirectOrder/GroupOrder; keys missing from the
// order lists (older documents) are appended in map iteration order sorted
// by key so restores stay deterministic.
func FromView(v model.ViewModel) *State {
	s := New()
	for _, k := range orderedKeys(v.Chats, v.DirectOrder) {
		s.Chats.Upsert(k, cloneMessages(v.Chats[k]))
	}
	for _, g := range v.Groups {
		if g.ID == "" || s.Groups.Has(g.ID) {
			continue
		}
		s.Groups.Upsert(g.ID, g.Clone())
	}
	for _, k := range orderedKeys(v.GroupMessages, v.GroupOrder) {
		s.GroupMessages.Upsert(k, cloneMessages(v.GroupMessages[k]))
	}
	for _, c := range v.Contacts {
		if c.ID == "" || s.Contacts.Has(c.ID) {
			continue
		}
		s.Contacts.Upsert(c.ID, c)
	}
	s.SelectedChatID = v.SelectedChatID
	s.SelectedGroupID = v.SelectedGroupID
	if s.SelectedChatID != "" && s.SelectedGroupID != "" {
		// Documents written by older clients could carry both.
		s.SelectedChatID = ""
	}
	s.LastError = v.LastError
	return s
}

// View returns a deep copy of the state as a view model. The provisional
// list is filled in by the caller that owns pending temp entities.
func (s *State) View() model.ViewModel {
	v := model.Empty()
	v.Chats, v.DirectOrder = s.Chats.Snapshot()
	v.GroupMessages, v.GroupOrder = s.GroupMessages.Snapshot()
	if v.DirectOrder == nil {
		v.DirectOrder = []string{}
	}
	if v.GroupOrder == nil {
		v.GroupOrder = []string{}
	}
	s.Groups.Each(func(_ string, g model.Group) bool {
		v.Groups = append(v.Groups, g.Clone())
		return true
	})
	s.Contacts.Each(func(_ string, c model.Contact) bool {
		v.Contacts = append(v.Contacts, c)
		return true
	})
	v.SelectedChatID = s.SelectedChatID
	v.SelectedGroupID = s.SelectedGroupID
	v.Connected = s.Connected
	v.LastError = s.LastError
	return v
}

// TempGroups returns temp groups in insertion order (oldest first).
func (s *State) TempGroups() []model.Group {
	var out []model.Group
	s.Groups.Each(func(id string, g model.Group) bool {
		if model.IsTempID(id) {
			out = append(out, g)
		}
		return true
	})
	return out
}

func cloneMessages(in []model.Message) []model.Message {
	return append(make([]model.Message, 0, len(in)), in...)
}

func orderedKeys(m map[string][]model.Message, order []string) []string {
	seen := make(map[string]bool, len(m))
	out := make([]string, 0, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}
