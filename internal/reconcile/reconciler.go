package reconcile

import (
	"log/slog"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/state"
)

// Confirmer matches server confirmations against optimistic writes.
// Implemented by optimistic.Tracker.
type Confirmer interface {
	// ConfirmGroup swaps a pending temp group for g, if one matches.
	// Returns the superseded temp id and the number of migrated messages.
	ConfirmGroup(g model.Group) (tempID string, migrated int, ok bool)

	// ConfirmMessage reports whether m is the server echo of a pending
	// optimistic send to target. A confirmed echo is not appended again.
	ConfirmMessage(target string, group bool, m model.Message) bool
}

// Reconciler applies snapshots and push events to a State.
//
// Not safe for concurrent use: it runs on the coordinator's event loop.
type Reconciler struct {
	st        *state.State
	confirmer Confirmer
	dedup     bool
	log       *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithConfirmer routes confirmations through c (normally the optimistic
// tracker). Without one, temp groups are matched by scanning state.
func WithConfirmer(c Confirmer) Option {
	return func(r *Reconciler) {
		r.confirmer = c
	}
}

// WithDedup drops a pushed message identical (author, content, timestamp)
// to one already in the target sequence. Only needed when the transport
// violates at-most-once delivery.
func WithDedup() Option {
	return func(r *Reconciler) {
		r.dedup = true
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.log = l
	}
}

// New creates a Reconciler acting on st.
func New(st *state.State, opts ...Option) *Reconciler {
	r := &Reconciler{st: st, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.confirmer == nil {
		r.confirmer = scanConfirmer{st: st}
	}
	return r
}

// ApplyPushMessage appends m to the direct conversation key, creating it if
// absent.
func (r *Reconciler) ApplyPushMessage(key string, m model.Message) Change {
	return r.applyMessage(FamilyChats, key, false, m)
}

// ApplyPushGroupMessage appends m to the group conversation groupID,
// creating it if absent.
func (r *Reconciler) ApplyPushGroupMessage(groupID string, m model.Message) Change {
	return r.applyMessage(FamilyGroupMessages, groupID, true, m)
}

func (r *Reconciler) applyMessage(family Family, key string, group bool, m model.Message) Change {
	seq := r.st.Chats
	if group {
		seq = r.st.GroupMessages
	}

	if r.confirmer.ConfirmMessage(key, group, m) {
		r.log.Debug("push confirmed optimistic send", "family", family, "key", key)
		return Change{Family: family, Key: key, Action: ActionConfirm}
	}

	if r.dedup {
		cur, _ := seq.Get(key)
		for _, existing := range cur {
			if existing.Equal(m) {
				r.log.Debug("dropping duplicate push", "family", family, "key", key, "timestamp", m.Timestamp)
				return Change{Family: family, Key: key, Action: ActionNone}
			}
		}
	}

	action := ActionAppend
	if !seq.Has(key) {
		action = ActionCreate
	}
	seq.Append(key, m)
	return Change{Family: family, Key: key, Action: action}
}

// ApplyPushGroup upserts g by id. A temp group with the same name and
// creator is superseded by g and its messages migrate to g.ID.
func (r *Reconciler) ApplyPushGroup(g model.Group) Change {
	g.Members = model.NormalizeMembers(g.Members)
	change := Change{Family: FamilyGroups, Key: g.ID}

	if model.IsTempID(g.ID) {
		// The server never assigns temp ids; storing one would make it
		// indistinguishable from an optimistic write.
		r.log.Warn("ignoring pushed group with reserved temp id", "id", g.ID)
		change.Action = ActionNone
		return change
	}

	// A known id is an update, never a confirmation: otherwise a re-sent
	// group could swallow a second pending temp with the same name.
	if !r.st.Groups.Has(g.ID) {
		if tempID, migrated, ok := r.confirmer.ConfirmGroup(g); ok {
			change.Action = ActionSupersede
			change.Swaps = []Swap{{TempID: tempID, ConfirmedID: g.ID, Migrated: migrated}}
			return change
		}
	}

	if existing, ok := r.st.Groups.Get(g.ID); ok {
		if existing.Fingerprint() == g.Fingerprint() {
			change.Action = ActionNone
			return change
		}
		change.Action = ActionUpdate
	} else {
		change.Action = ActionCreate
	}
	r.st.Groups.Upsert(g.ID, g)
	r.st.GroupMessages.Ensure(g.ID)
	return change
}

// ApplyPushContact inserts c. No-op if c.ID is already present.
func (r *Reconciler) ApplyPushContact(c model.Contact) Change {
	change := Change{Family: FamilyContacts, Key: c.ID, Action: ActionNone}
	if c.ID == "" || r.st.Contacts.Has(c.ID) {
		return change
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	r.st.Contacts.Upsert(c.ID, c)
	change.Action = ActionCreate
	return change
}

// RemoveContact deletes a contact. Conversations with the contact are kept.
func (r *Reconciler) RemoveContact(id string) Change {
	change := Change{Family: FamilyContacts, Key: id, Action: ActionNone}
	if r.st.Contacts.Delete(id) {
		change.Action = ActionDelete
	}
	return change
}

// ApplyMember adds or removes member from group groupID. Unknown groups are
// ignored: membership events never create groups.
func (r *Reconciler) ApplyMember(groupID, member string, add bool) Change {
	change := Change{Family: FamilyGroups, Key: groupID, Action: ActionNone}
	g, ok := r.st.Groups.Get(groupID)
	if !ok || member == "" || g.HasMember(member) == add {
		return change
	}
	g = g.Clone()
	if add {
		g.Members = model.NormalizeMembers(append(g.Members, member))
	} else {
		kept := g.Members[:0]
		for _, m := range g.Members {
			if m != member {
				kept = append(kept, m)
			}
		}
		g.Members = kept
	}
	r.st.Groups.Upsert(groupID, g)
	change.Action = ActionUpdate
	return change
}

// scanConfirmer matches temp groups by scanning state when no tracker is
// wired. It never confirms messages.
type scanConfirmer struct {
	st *state.State
}

func (c scanConfirmer) ConfirmGroup(g model.Group) (string, int, bool) {
	for _, temp := range c.st.TempGroups() {
		if temp.Key() == g.Key() {
			return temp.ID, c.st.Supersede(temp.ID, g), true
		}
	}
	return "", 0, false
}

func (scanConfirmer) ConfirmMessage(string, bool, model.Message) bool {
	return false
}
