package model

import (
	"slices"
	"strings"
)

// Message is a single chat line. Immutable once created.
type Message struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Group is a group conversation header.
//
// ID is either server-assigned or a temp id (see IsTempID) pending
// confirmation. Members is kept sorted and duplicate-free by NormalizeMembers.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedBy string   `json:"created_by"`
	CreatedAt int64    `json:"created_at"`
}

// BusinessKey is the attribute pair used to match an optimistic group against
// its server confirmation.
//
// Matching by name is known to be ambiguous when two groups with the same
// name are created concurrently by the same user; no stronger correlation id
// exists on the wire.
type BusinessKey struct {
	Name      string
	CreatedBy string
}

// Key returns the group's business key.
func (g Group) Key() BusinessKey {
	return BusinessKey{Name: g.Name, CreatedBy: g.CreatedBy}
}

// HasMember reports whether id is a member of the group.
func (g Group) HasMember(id string) bool {
	_, found := slices.BinarySearch(g.Members, id)
	return found
}

// Clone returns a deep copy of g.
func (g Group) Clone() Group {
	g.Members = slices.Clone(g.Members)
	return g
}

// NormalizeMembers sorts and deduplicates a member list. Empty ids are dropped.
func NormalizeMembers(members []string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contact is an address book entry, unique by ID.
type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is one bulk pull of server state.
//
// A nil family means "not fetched" and leaves local state for that family
// untouched; an empty non-nil family is a real (empty) answer.
type Snapshot struct {
	Messages      map[string][]Message `json:"messages,omitempty"`
	Groups        []Group              `json:"groups,omitempty"`
	GroupMessages map[string][]Message `json:"group_messages,omitempty"`
	Contacts      []Contact            `json:"contacts,omitempty"`
}

// Provisional describes a locally created entity still waiting for its
// server confirmation.
//
// Target is the group name for group temps, and the conversation key (or
// group id when Group is set) for message temps.
type Provisional struct {
	TempID    string   `json:"temp_id"`
	Kind      string   `json:"kind"`
	Target    string   `json:"target"`
	Group     bool     `json:"group,omitempty"`
	Message   *Message `json:"message,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

// Temp entity kinds.
const (
	KindGroup   = "group"
	KindMessage = "message"
)

// ViewModel is the reconciled state handed to presentation and persistence.
// It is always a copy; mutating it never affects the owning coordinator.
//
// DirectOrder and GroupOrder carry insertion order, which JSON objects lose.
type ViewModel struct {
	Chats           map[string][]Message `json:"hyperware_chats"`
	DirectOrder     []string             `json:"chatOrder"`
	Groups          []Group              `json:"groups"`
	GroupMessages   map[string][]Message `json:"groupMessages"`
	GroupOrder      []string             `json:"groupMessageOrder"`
	Contacts        []Contact            `json:"contacts"`
	SelectedChatID  string               `json:"selectedChatId"`
	SelectedGroupID string               `json:"selectedGroupId"`
	Provisional     []Provisional        `json:"provisional"`
	Connected       bool                 `json:"connected"`
	LastError       string               `json:"lastError,omitempty"`
}

// Empty returns a ViewModel with every family initialized.
func Empty() ViewModel {
	return ViewModel{
		Chats:         map[string][]Message{},
		DirectOrder:   []string{},
		Groups:        []Group{},
		GroupMessages: map[string][]Message{},
		GroupOrder:    []string{},
		Contacts:      []Contact{},
		Provisional:   []Provisional{},
	}
}

// Group returns the group with the given id.
func (v ViewModel) Group(id string) (Group, bool) {
	for _, g := range v.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// Contact returns the contact with the given id.
func (v ViewModel) Contact(id string) (Contact, bool) {
	for _, c := range v.Contacts {
		if c.ID == id {
			return c, true
		}
	}
	return Contact{}, false
}
