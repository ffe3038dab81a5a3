package engine

import (
	"context"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/reconcile"
	"github.com/roach88/chatsync/internal/store"
	"github.com/roach88/chatsync/internal/wire"
)

// processPush decodes one inbound frame and routes it to the reconciler.
// A frame that fails to parse is dropped; state is untouched.
func (c *Coordinator) processPush(ctx context.Context, frame []byte) error {
	tag, payload, err := wire.SplitFrame(frame)
	if err != nil {
		c.metrics.Error(string(model.ErrCodeParse))
		return err
	}
	ev, err := wire.DecodePayload(tag, payload)
	if err != nil {
		c.metrics.Error(string(model.ErrCodeParse))
		return err
	}

	ch := c.applyPush(ev)
	c.observe(ch)
	if !ch.Mutated() {
		return nil
	}
	c.commit(ctx, store.SourcePush, tag, payload)
	c.flushDeferred(ctx, ch.Swaps)
	return nil
}

// applyPush routes a decoded event. The switch covers every wire.Event.
func (c *Coordinator) applyPush(ev wire.Event) reconcile.Change {
	switch e := ev.(type) {
	case wire.NewMessage:
		return c.reconciler.ApplyPushMessage(e.Counterparty, e.Message())
	case wire.NewGroupMessage:
		return c.reconciler.ApplyPushGroupMessage(e.GroupID, e.Message())
	case wire.NewGroup:
		return c.reconciler.ApplyPushGroup(e.Group)
	case wire.ContactAdded:
		return c.reconciler.ApplyPushContact(e.Contact)
	case wire.ContactRemoved:
		return c.reconciler.RemoveContact(e.ID)
	case wire.MemberChange:
		return c.reconciler.ApplyMember(e.GroupID, e.Member, e.Added)
	case wire.Messages:
		return c.reconciler.MergeMessages(e.Chats)
	case wire.Contacts:
		return c.reconciler.MergeContacts(e.Contacts)
	case wire.Groups:
		return c.reconciler.MergeGroups(e.Groups)
	case wire.GroupMessages:
		return c.reconciler.MergeGroupMessages(e.GroupID, e.Messages)
	default:
		c.log.Warn("dropping unhandled event", "tag", ev.Tag())
		return reconcile.Change{Action: reconcile.ActionNone}
	}
}

// applyStatus records a connectivity change.
func (c *Coordinator) applyStatus(ctx context.Context, s Status) error {
	if s.Error != "" {
		c.metrics.Error(string(model.ErrCodeTransport))
	}
	c.metrics.SetConnected(s.Connected)
	if c.st.Connected == s.Connected && c.st.LastError == s.Error {
		return nil
	}
	c.st.Connected = s.Connected
	c.st.LastError = s.Error
	c.log.Info("connectivity changed", "connected", s.Connected, "error", s.Error)
	c.commit(ctx, store.SourceTransport, "Status", s)
	return nil
}

// recordTransportError marks a failed outbound command in the
// connectivity status. Commands are not retried.
func (c *Coordinator) recordTransportError(ctx context.Context, err error) {
	c.log.Warn("outbound command failed", "error", err)
	_ = c.applyStatus(ctx, Status{Connected: c.st.Connected, Error: err.Error()})
}
