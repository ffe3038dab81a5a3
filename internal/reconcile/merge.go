package reconcile

import (
	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/table"
)

// MergeSnapshot unions snap into state family by family. Nil families are
// skipped. See the package documentation for the policy.
func (r *Reconciler) MergeSnapshot(snap model.Snapshot) Change {
	return r.merge(snap, false)
}

// merge applies snap. With updateGroups false, groups already known locally
// are left untouched: the fetch may predate membership pushes applied since.
func (r *Reconciler) merge(snap model.Snapshot, updateGroups bool) Change {
	report := &MergeReport{}
	change := Change{Family: FamilySnapshot, Action: ActionMerge, Merge: report}

	if snap.Messages != nil {
		report.ChatsAdded, report.ChatsReplaced, report.ChatsKept =
			mergeSequences(r.st.Chats, snap.Messages, sortedKeys(snap.Messages))
	}

	// Groups go before group messages so superseded temp sequences are
	// already migrated when the snapshot's sequence for the confirmed id is
	// compared against local state.
	for _, g := range snap.Groups {
		if g.ID == "" {
			continue
		}
		if !updateGroups && r.st.Groups.Has(g.ID) {
			report.GroupsKept++
			continue
		}
		c := r.ApplyPushGroup(g)
		switch c.Action {
		case ActionCreate:
			report.GroupsAdded++
		case ActionUpdate:
			report.GroupsUpdated++
		case ActionSupersede:
			change.Swaps = append(change.Swaps, c.Swaps...)
		}
	}

	if snap.GroupMessages != nil {
		report.GroupChatsAdded, report.GroupChatsReplaced, report.GroupChatsKept =
			mergeSequences(r.st.GroupMessages, snap.GroupMessages, sortedKeys(snap.GroupMessages))
	}

	for _, c := range snap.Contacts {
		if r.ApplyPushContact(c).Action == ActionCreate {
			report.ContactsAdded++
		}
	}

	r.log.Debug("snapshot merged",
		"chats_added", report.ChatsAdded,
		"chats_replaced", report.ChatsReplaced,
		"chats_kept", report.ChatsKept,
		"groups_added", report.GroupsAdded,
		"groups_kept", report.GroupsKept,
		"contacts_added", report.ContactsAdded,
		"swaps", len(change.Swaps),
	)
	return change
}

// MergeMessages merges a bulk Messages push for direct conversations.
func (r *Reconciler) MergeMessages(msgs map[string][]model.Message) Change {
	return r.MergeSnapshot(model.Snapshot{Messages: nonNil(msgs)})
}

// MergeGroupMessages merges a bulk GroupMessages push for one group.
func (r *Reconciler) MergeGroupMessages(groupID string, msgs []model.Message) Change {
	return r.MergeSnapshot(model.Snapshot{GroupMessages: map[string][]model.Message{groupID: msgs}})
}

// MergeGroups merges a bulk Groups push. Unlike a snapshot, a push is
// current, so known groups take the pushed header.
func (r *Reconciler) MergeGroups(groups []model.Group) Change {
	return r.merge(model.Snapshot{Groups: groups}, true)
}

// MergeContacts merges a bulk Contacts push.
func (r *Reconciler) MergeContacts(contacts []model.Contact) Change {
	return r.MergeSnapshot(model.Snapshot{Contacts: contacts})
}

// mergeSequences applies the prefix rule for every key in incoming.
func mergeSequences(seq *table.Seq[string, model.Message], incoming map[string][]model.Message, keys []string) (added, replaced, kept int) {
	for _, k := range keys {
		remote := incoming[k]
		local, ok := seq.Get(k)
		switch {
		case !ok:
			seq.Upsert(k, append([]model.Message{}, remote...))
			added++
		case isStrictPrefix(local, remote):
			seq.Upsert(k, append([]model.Message{}, remote...))
			replaced++
		default:
			kept++
		}
	}
	return added, replaced, kept
}

// isStrictPrefix reports whether local is empty-or-a-proper-prefix of
// remote. Equal sequences are not a strict prefix: nothing to replace.
func isStrictPrefix(local, remote []model.Message) bool {
	if len(local) >= len(remote) {
		return false
	}
	for i := range local {
		if !local[i].Equal(remote[i]) {
			return false
		}
	}
	return true
}

func nonNil(m map[string][]model.Message) map[string][]model.Message {
	if m == nil {
		return map[string][]model.Message{}
	}
	return m
}
