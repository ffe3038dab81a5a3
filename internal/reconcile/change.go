package reconcile

// Family names an entity family.
type Family string

const (
	FamilyChats         Family = "chats"
	FamilyGroups        Family = "groups"
	FamilyGroupMessages Family = "group_messages"
	FamilyContacts      Family = "contacts"
	FamilySnapshot      Family = "snapshot"
)

// Action is what a reconciliation operation did.
type Action string

const (
	ActionNone      Action = "none"
	ActionCreate    Action = "create"
	ActionAppend    Action = "append"
	ActionConfirm   Action = "confirm"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionSupersede Action = "supersede"
	ActionMerge     Action = "merge"
)

// Swap records a temp id replaced by its confirmed id.
type Swap struct {
	TempID      string `json:"temp_id"`
	ConfirmedID string `json:"confirmed_id"`
	Migrated    int    `json:"migrated"`
}

// MergeReport counts what a snapshot merge did per family.
type MergeReport struct {
	ChatsAdded         int `json:"chats_added"`
	ChatsReplaced      int `json:"chats_replaced"`
	ChatsKept          int `json:"chats_kept"`
	GroupsAdded        int `json:"groups_added"`
	GroupsUpdated      int `json:"groups_updated"`
	GroupsKept         int `json:"groups_kept"`
	GroupChatsAdded    int `json:"group_chats_added"`
	GroupChatsReplaced int `json:"group_chats_replaced"`
	GroupChatsKept     int `json:"group_chats_kept"`
	ContactsAdded      int `json:"contacts_added"`
}

// Change describes the effect of one reconciliation operation.
type Change struct {
	Family Family       `json:"family"`
	Key    string       `json:"key,omitempty"`
	Action Action       `json:"action"`
	Swaps  []Swap       `json:"swaps,omitempty"`
	Merge  *MergeReport `json:"merge,omitempty"`
}

// Mutated reports whether the operation changed state.
func (c Change) Mutated() bool {
	if c.Action == ActionNone {
		return false
	}
	if c.Action == ActionMerge && c.Merge != nil && len(c.Swaps) == 0 {
		m := c.Merge
		return m.ChatsAdded+m.ChatsReplaced+m.GroupsAdded+m.GroupsUpdated+
			m.GroupChatsAdded+m.GroupChatsReplaced+m.ContactsAdded > 0
	}
	return true
}
