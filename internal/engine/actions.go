package engine

import (
	"context"
	"fmt"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/optimistic"
	"github.com/roach88/chatsync/internal/reconcile"
	"github.com/roach88/chatsync/internal/store"
	"github.com/roach88/chatsync/internal/wire"
)

// ActionKind names a local user action.
type ActionKind string

const (
	ActionSendDirect     ActionKind = "SendDirect"
	ActionSendGroup      ActionKind = "SendGroup"
	ActionCreateGroup    ActionKind = "CreateGroup"
	ActionAddContact     ActionKind = "AddContact"
	ActionRemoveContact  ActionKind = "RemoveContact"
	ActionSelectDirect   ActionKind = "SelectDirect"
	ActionSelectGroup    ActionKind = "SelectGroup"
	ActionClearSelection ActionKind = "ClearSelection"
	ActionRefresh        ActionKind = "Refresh"
)

// Action is a local user action. It is logged as applied, so TempID and At
// are filled in by the coordinator the first time it runs and reused on
// replay.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Target  string     `json:"target,omitempty"`
	Content string     `json:"content,omitempty"`
	Name    string     `json:"name,omitempty"`
	Members []string   `json:"members,omitempty"`
	TempID  string     `json:"temp_id,omitempty"`
	At      int64      `json:"at,omitempty"`
}

// Result is the outcome of a local action.
type Result struct {
	// TempID is the provisional id created by the action, if any.
	TempID string
	// Created reports that selecting a conversation created it.
	Created bool
	Err     error
}

// SendDirect optimistically appends a message to the conversation with
// counterparty `to` and sends it.
func (c *Coordinator) SendDirect(ctx context.Context, to, content string) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionSendDirect, Target: to, Content: content})
}

// SendGroup optimistically appends a message to group groupID and sends it.
// Sends to a temp group are held until the group is confirmed.
func (c *Coordinator) SendGroup(ctx context.Context, groupID, content string) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionSendGroup, Target: groupID, Content: content})
}

// CreateGroup optimistically creates a temp group and asks the server to
// create it. The local identity is always a member.
func (c *Coordinator) CreateGroup(ctx context.Context, name string, members []string) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionCreateGroup, Name: name, Members: members})
}

// AddContact adds a contact locally and asks the server to add it.
func (c *Coordinator) AddContact(ctx context.Context, id, name string) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionAddContact, Target: id, Name: name})
}

// RemoveContact removes a contact locally and asks the server to remove it.
func (c *Coordinator) RemoveContact(ctx context.Context, id string) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionRemoveContact, Target: id})
}

// SelectDirect selects a direct conversation, creating it if unknown.
func (c *Coordinator) SelectDirect(ctx context.Context, key string) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionSelectDirect, Target: key})
}

// SelectGroup selects a group conversation.
func (c *Coordinator) SelectGroup(ctx context.Context, id string) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionSelectGroup, Target: id})
}

// ClearSelection returns to no selection.
func (c *Coordinator) ClearSelection(ctx context.Context) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionClearSelection})
}

// Refresh starts a snapshot fetch unless one is in flight.
func (c *Coordinator) Refresh(ctx context.Context) (Result, error) {
	return c.do(ctx, &Action{Kind: ActionRefresh})
}

// Apply runs a local action synchronously.
// Only when Run is not active.
func (c *Coordinator) Apply(ctx context.Context, a Action) Result {
	return c.processLocal(ctx, &a)
}

// do enqueues a and waits for the Run loop to apply it.
func (c *Coordinator) do(ctx context.Context, a *Action) (Result, error) {
	reply := make(chan Result, 1)
	if !c.queue.Enqueue(Event{Type: EventTypeLocal, Action: a, reply: reply}) {
		return Result{}, fmt.Errorf("%s: coordinator stopped", a.Kind)
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-reply:
		return res, res.Err
	}
}

// processLocal applies a local action: optimistic write, commit, then the
// outbound command.
func (c *Coordinator) processLocal(ctx context.Context, a *Action) Result {
	if a.At == 0 {
		a.At = c.now().Unix()
	}
	c.pinnedNow = a.At
	if a.TempID != "" {
		c.ids.pin(a.TempID)
	}
	defer func() {
		c.pinnedNow = 0
		c.ids.next = ""
	}()

	var (
		res Result
		cmd wire.Command
		err error
	)
	switch a.Kind {
	case ActionSendDirect:
		res.TempID, err = c.tracker.CreateTemp(model.KindMessage, optimistic.MessagePayload{
			Target: a.Target, Author: c.self, Content: a.Content,
		})
		cmd = wire.Send{Target: a.Target, Message: a.Content}

	case ActionSendGroup:
		if !c.st.Groups.Has(a.Target) {
			err = fmt.Errorf("send group: unknown group %q", a.Target)
			break
		}
		res.TempID, err = c.tracker.CreateTemp(model.KindMessage, optimistic.MessagePayload{
			Target: a.Target, Group: true, Author: c.self, Content: a.Content,
		})
		gm := wire.GroupMessage{GroupID: a.Target, Message: a.Content}
		if model.IsTempID(a.Target) {
			if !c.replaying {
				c.deferred[a.Target] = append(c.deferred[a.Target], gm)
			}
		} else {
			cmd = gm
		}

	case ActionCreateGroup:
		res.TempID, err = c.tracker.CreateTemp(model.KindGroup, optimistic.GroupPayload{
			Name: a.Name, Members: a.Members, CreatedBy: c.self,
		})
		cmd = wire.CreateGroup{Name: a.Name, Members: model.NormalizeMembers(a.Members)}

	case ActionAddContact:
		if a.Target == "" {
			err = fmt.Errorf("add contact: empty id")
			break
		}
		c.observe(c.reconciler.ApplyPushContact(model.Contact{ID: a.Target, Name: a.Name}))
		cmd = wire.AddContact{ID: a.Target, Name: a.Name}

	case ActionRemoveContact:
		if a.Target == "" {
			err = fmt.Errorf("remove contact: empty id")
			break
		}
		c.observe(c.reconciler.RemoveContact(a.Target))
		cmd = wire.RemoveContact{ID: a.Target}

	case ActionSelectDirect:
		res.Created, err = c.selection.SelectDirect(a.Target)

	case ActionSelectGroup:
		if !c.st.Groups.Has(a.Target) {
			err = fmt.Errorf("select group: unknown group %q", a.Target)
			break
		}
		res.Created, err = c.selection.SelectGroup(a.Target)

	case ActionClearSelection:
		c.selection.Clear()

	case ActionRefresh:
		c.startFetch(ctx)
		return res

	default:
		err = fmt.Errorf("unknown action %q", a.Kind)
	}

	if err != nil {
		res.Err = err
		return res
	}

	a.TempID = res.TempID
	c.commit(ctx, store.SourceLocal, string(a.Kind), a)
	c.send(ctx, cmd)
	return res
}

// send writes cmd to the transport. Failures are recorded, never retried.
func (c *Coordinator) send(ctx context.Context, cmd wire.Command) {
	if cmd == nil || c.replaying {
		return
	}
	if c.transport == nil {
		c.recordTransportError(ctx, model.NewTransportError("send "+cmd.Tag(), fmt.Errorf("no transport")))
		return
	}
	if err := c.transport.Send(ctx, cmd); err != nil {
		c.recordTransportError(ctx, model.NewTransportError("send "+cmd.Tag(), err))
	}
}

// heldGroupSends rebuilds the group messages waiting on temp groups from
// the pending list, which is what survives a restart.
func heldGroupSends(pending []model.Provisional) map[string][]wire.GroupMessage {
	held := make(map[string][]wire.GroupMessage)
	for _, p := range pending {
		if p.Kind != model.KindMessage || !p.Group || p.Message == nil || !model.IsTempID(p.Target) {
			continue
		}
		held[p.Target] = append(held[p.Target], wire.GroupMessage{GroupID: p.Target, Message: p.Message.Content})
	}
	return held
}

// flushDeferred sends group messages held for temp groups that were just
// confirmed.
func (c *Coordinator) flushDeferred(ctx context.Context, swaps []reconcile.Swap) {
	for _, s := range swaps {
		held := c.deferred[s.TempID]
		if len(held) == 0 {
			continue
		}
		delete(c.deferred, s.TempID)
		c.log.Info("sending held group messages", "group_id", s.ConfirmedID, "count", len(held))
		for _, gm := range held {
			gm.GroupID = s.ConfirmedID
			c.send(ctx, gm)
		}
	}
}
