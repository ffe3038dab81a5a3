package engine

import (
	"context"
	"time"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/store"
)

// startFetch issues a snapshot fetch in the background, unless one is
// already in flight. The result is enqueued like any other event, so pushes
// processed meanwhile are never lost or cancelled.
func (c *Coordinator) startFetch(ctx context.Context) {
	if c.fetcher == nil || c.replaying {
		return
	}
	if !c.fetching.CompareAndSwap(false, true) {
		c.log.Debug("snapshot fetch already in flight")
		return
	}

	go func() {
		start := time.Now()
		snap, err := c.fetcher.FetchSnapshot(ctx)
		c.metrics.ObserveFetch(time.Since(start))
		if ctx.Err() != nil {
			c.fetching.Store(false)
			return
		}
		ev := Event{Type: EventTypeSnapshot, FetchErr: err}
		if err == nil {
			ev.Snapshot = &snap
		}
		if !c.queue.Enqueue(ev) {
			c.fetching.Store(false)
		}
	}()
}

func (c *Coordinator) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.queue.Enqueue(Event{Type: EventTypeLocal, Action: &Action{Kind: ActionRefresh}})
		}
	}
}

// processSnapshot merges a fetch result. A failed fetch is a transport
// error: recorded, not retried until the next refresh.
func (c *Coordinator) processSnapshot(ctx context.Context, snap *model.Snapshot, fetchErr error) error {
	c.fetching.Store(false)

	if fetchErr != nil {
		err := model.NewTransportError("fetch snapshot", fetchErr)
		c.recordTransportError(ctx, err)
		return nil
	}
	if snap == nil {
		return nil
	}

	ch := c.reconciler.MergeSnapshot(*snap)
	c.observe(ch)
	if m := ch.Merge; m != nil {
		c.log.Info("snapshot merged",
			"chats_added", m.ChatsAdded,
			"chats_replaced", m.ChatsReplaced,
			"chats_kept", m.ChatsKept,
			"groups_added", m.GroupsAdded,
			"groups_updated", m.GroupsUpdated,
			"contacts_added", m.ContactsAdded,
			"superseded", len(ch.Swaps),
		)
	}

	if ch.Mutated() {
		c.commit(ctx, store.SourceSnapshot, "Snapshot", snap)
		c.flushDeferred(ctx, ch.Swaps)
	}

	if !c.replaying {
		for _, err := range c.tracker.Conflicts(c.conflictAge) {
			c.metrics.Error(string(model.ErrCodeConflict))
			c.log.Warn("unconfirmed optimistic write", "error", err)
		}
	}
	return nil
}
