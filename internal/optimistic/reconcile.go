package optimistic

import (
	"fmt"

	"github.com/roach88/chatsync/internal/model"
)

// ConfirmedMessage is a server-confirmed message addressed to Target.
type ConfirmedMessage struct {
	Target  string
	Group   bool
	Message model.Message
}

// Result reports a provisional entity swapped for its confirmation.
type Result struct {
	TempID      string
	ConfirmedID string
	Kind        string
	Migrated    int
}

// Reconcile swaps the provisional entity matching confirmed (a model.Group
// or a ConfirmedMessage) for the confirmed one. It returns a conflict error
// when nothing pending matches; state is left unchanged in that case.
func (t *Tracker) Reconcile(confirmed any) (Result, error) {
	switch c := confirmed.(type) {
	case model.Group:
		tempID, migrated, ok := t.ConfirmGroup(c)
		if !ok {
			return Result{}, model.NewConflictError(c.ID, "no pending group matches confirmation")
		}
		return Result{TempID: tempID, ConfirmedID: c.ID, Kind: model.KindGroup, Migrated: migrated}, nil
	case ConfirmedMessage:
		tempID, ok := t.confirmMessage(c.Target, c.Group, c.Message)
		if !ok {
			return Result{}, model.NewConflictError(c.Target, "no pending message matches confirmation")
		}
		return Result{TempID: tempID, ConfirmedID: tempID, Kind: model.KindMessage}, nil
	default:
		return Result{}, fmt.Errorf("reconcile: unsupported confirmation %T", confirmed)
	}
}

// ConfirmGroup implements reconcile.Confirmer. The oldest pending temp group
// with g's name and creator is superseded by g. When several match, the
// rest stay provisional and are logged: the wire offers nothing stronger
// than the name to tell them apart.
func (t *Tracker) ConfirmGroup(g model.Group) (string, int, bool) {
	match := -1
	candidates := 0
	for i, p := range t.pending {
		if p.Kind != model.KindGroup {
			continue
		}
		temp, ok := t.st.Groups.Get(p.TempID)
		if !ok || temp.Key() != g.Key() {
			continue
		}
		candidates++
		if match < 0 {
			match = i
		}
	}
	if match < 0 {
		return "", 0, false
	}
	if candidates > 1 {
		t.log.Warn("ambiguous group confirmation; superseding oldest temp",
			"confirmed_id", g.ID, "name", g.Name, "candidates", candidates)
	}

	tempID := t.pending[match].TempID
	t.remove(match)
	migrated := t.st.Supersede(tempID, g)

	for i := range t.pending {
		p := &t.pending[i]
		if p.Kind == model.KindMessage && p.Group && p.Target == tempID {
			p.Target = g.ID
		}
	}
	t.log.Info("temp group confirmed", "temp_id", tempID, "id", g.ID, "migrated", migrated)
	return tempID, migrated, true
}

// ConfirmMessage implements reconcile.Confirmer.
func (t *Tracker) ConfirmMessage(target string, group bool, m model.Message) bool {
	_, ok := t.confirmMessage(target, group, m)
	return ok
}

func (t *Tracker) confirmMessage(target string, group bool, m model.Message) (string, bool) {
	window := int64(t.window.Seconds())
	for i, p := range t.pending {
		if p.Kind != model.KindMessage || p.Group != group || p.Target != target || p.Message == nil {
			continue
		}
		local := *p.Message
		if local.Author != m.Author || local.Content != m.Content {
			continue
		}
		if d := m.Timestamp - local.Timestamp; d > window || d < -window {
			continue
		}
		t.remove(i)
		t.swapConfirmed(target, group, local, m)
		return p.TempID, true
	}
	return "", false
}

// swapConfirmed puts the server's copy of a sent message where the
// optimistic one sits, so later snapshots see the server timestamp and can
// extend the sequence.
func (t *Tracker) swapConfirmed(target string, group bool, local, confirmed model.Message) {
	seq := t.st.Chats
	if group {
		seq = t.st.GroupMessages
	}
	if seq.Swap(target, func(m model.Message) bool { return m == local }, confirmed) {
		return
	}
	t.log.Warn("optimistic copy missing from conversation; appending confirmation",
		"target", target, "group", group)
	seq.Append(target, confirmed)
}
