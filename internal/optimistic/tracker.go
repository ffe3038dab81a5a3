// Package optimistic tracks locally created entities until the server
// confirms them.
//
// A temp group lives in the group table under a temp id; a temp message is
// appended to its conversation immediately. Confirmation is matched by
// business key (group name + creator, or message content + sender + a
// bounded timestamp window), since the wire carries no correlation id.
// Unmatched entries stay provisional indefinitely; there is no timeout or
// rollback.
package optimistic

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/state"
)

// DefaultMatchWindow bounds |server timestamp - local timestamp| for a
// message confirmation.
const DefaultMatchWindow = 30 * time.Second

// GroupPayload is the input for a temp group.
type GroupPayload struct {
	Name      string
	Members   []string
	CreatedBy string
}

// MessagePayload is the input for a temp message. Target is a counterparty
// id, or a group id when Group is set.
type MessagePayload struct {
	Target  string
	Group   bool
	Author  string
	Content string
}

// Tracker owns the pending optimistic writes for one State.
//
// Not safe for concurrent use: it runs on the coordinator's event loop.
type Tracker struct {
	st      *state.State
	gen     IDGenerator
	now     func() time.Time
	window  time.Duration
	pending []model.Provisional
	log     *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIDGenerator overrides the temp id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(t *Tracker) { t.gen = g }
}

// WithNow overrides the wall clock used for temp timestamps.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMatchWindow overrides DefaultMatchWindow.
func WithMatchWindow(d time.Duration) Option {
	return func(t *Tracker) { t.window = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// New creates a Tracker over st.
func New(st *state.State, opts ...Option) *Tracker {
	t := &Tracker{
		st:     st,
		gen:    UUIDv7Generator{},
		now:    time.Now,
		window: DefaultMatchWindow,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Restore reloads pending entries persisted in a view model. Entries whose
// temp entity no longer exists in state are dropped.
func (t *Tracker) Restore(pending []model.Provisional) {
	t.pending = t.pending[:0]
	for _, p := range pending {
		switch p.Kind {
		case model.KindGroup:
			if !t.st.Groups.Has(p.TempID) {
				continue
			}
		case model.KindMessage:
			if p.Message == nil {
				continue
			}
		default:
			continue
		}
		t.pending = append(t.pending, p)
	}
	// Temp groups restored from an older document without a provisional
	// list still need tracking.
	for _, g := range t.st.TempGroups() {
		if t.find(g.ID) < 0 {
			t.pending = append(t.pending, model.Provisional{
				TempID: g.ID, Kind: model.KindGroup, Target: g.Name, CreatedAt: g.CreatedAt,
			})
		}
	}
}

// CreateTemp inserts a provisional entity and returns its temp id.
// payload must be a GroupPayload for KindGroup or a MessagePayload for
// KindMessage.
func (t *Tracker) CreateTemp(kind string, payload any) (string, error) {
	switch kind {
	case model.KindGroup:
		p, ok := payload.(GroupPayload)
		if !ok {
			return "", fmt.Errorf("create temp: %s payload has type %T", kind, payload)
		}
		return t.createGroup(p)
	case model.KindMessage:
		p, ok := payload.(MessagePayload)
		if !ok {
			return "", fmt.Errorf("create temp: %s payload has type %T", kind, payload)
		}
		return t.createMessage(p)
	default:
		return "", fmt.Errorf("create temp: unknown kind %q", kind)
	}
}

func (t *Tracker) createGroup(p GroupPayload) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("create temp group: name is required")
	}
	id := newTempID(t.gen)
	now := t.now().Unix()
	g := model.Group{
		ID:        id,
		Name:      p.Name,
		Members:   model.NormalizeMembers(append(append([]string{}, p.Members...), p.CreatedBy)),
		CreatedBy: p.CreatedBy,
		CreatedAt: now,
	}
	t.st.Groups.Upsert(id, g)
	t.st.GroupMessages.Ensure(id)
	t.pending = append(t.pending, model.Provisional{
		TempID: id, Kind: model.KindGroup, Target: p.Name, CreatedAt: now,
	})
	t.log.Debug("temp group created", "temp_id", id, "name", p.Name)
	return id, nil
}

func (t *Tracker) createMessage(p MessagePayload) (string, error) {
	if p.Target == "" {
		return "", fmt.Errorf("create temp message: target is required")
	}
	id := newTempID(t.gen)
	now := t.now().Unix()
	m := model.Message{Author: p.Author, Content: p.Content, Timestamp: now}
	if p.Group {
		t.st.GroupMessages.Append(p.Target, m)
	} else {
		t.st.Chats.Append(p.Target, m)
	}
	t.pending = append(t.pending, model.Provisional{
		TempID: id, Kind: model.KindMessage, Target: p.Target, Group: p.Group, Message: &m, CreatedAt: now,
	})
	return id, nil
}

// Pending returns a copy of the provisional entries, oldest first.
func (t *Tracker) Pending() []model.Provisional {
	out := make([]model.Provisional, len(t.pending))
	copy(out, t.pending)
	return out
}

// IsPending reports whether tempID is still provisional.
func (t *Tracker) IsPending(tempID string) bool {
	return t.find(tempID) >= 0
}

// Conflicts reports every provisional entry older than age as a
// reconciliation conflict. Entries are left in place.
func (t *Tracker) Conflicts(age time.Duration) []error {
	cutoff := t.now().Add(-age).Unix()
	var out []error
	for _, p := range t.pending {
		if p.CreatedAt <= cutoff {
			out = append(out, model.NewConflictError(p.TempID,
				fmt.Sprintf("%s %q has no server confirmation", p.Kind, p.Target)))
		}
	}
	return out
}

func (t *Tracker) find(tempID string) int {
	for i, p := range t.pending {
		if p.TempID == tempID {
			return i
		}
	}
	return -1
}

func (t *Tracker) remove(i int) {
	t.pending = append(t.pending[:i], t.pending[i+1:]...)
}
