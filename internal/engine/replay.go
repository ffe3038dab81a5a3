package engine

// # Replay
//
// Every committed event is logged with the source it came from and the
// payload the coordinator applied. Replaying the log from an empty state
// through the same Process path must reproduce the committed document.
//
// Three things make that hold:
//
// 1. Only mutating events are logged, in commit order (seq ASC).
//
// 2. Local actions are logged after they run, carrying the temp id and the
// timestamp they were assigned. On replay both are pinned, so optimistic
// entities get the same ids and CreatedAt values.
//
// 3. Outbound commands and snapshot fetches are side effects, not state.
// A replaying coordinator never sends or fetches; failed sends were logged
// as their own Status events and replay from there.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/store"
)

// EventFromRecord rebuilds the event a log record was produced by.
func EventFromRecord(rec store.EventRecord) (Event, error) {
	switch rec.Source {
	case store.SourcePush:
		frame, err := json.Marshal(map[string]json.RawMessage{rec.Tag: rec.Payload})
		if err != nil {
			return Event{}, fmt.Errorf("rebuild frame seq=%d: %w", rec.Seq, err)
		}
		return Event{Type: EventTypePush, Frame: frame}, nil

	case store.SourceSnapshot:
		var snap model.Snapshot
		if err := json.Unmarshal(rec.Payload, &snap); err != nil {
			return Event{}, fmt.Errorf("decode snapshot seq=%d: %w", rec.Seq, err)
		}
		return Event{Type: EventTypeSnapshot, Snapshot: &snap}, nil

	case store.SourceLocal:
		var a Action
		if err := json.Unmarshal(rec.Payload, &a); err != nil {
			return Event{}, fmt.Errorf("decode action seq=%d: %w", rec.Seq, err)
		}
		return Event{Type: EventTypeLocal, Action: &a}, nil

	case store.SourceTransport:
		var s Status
		if err := json.Unmarshal(rec.Payload, &s); err != nil {
			return Event{}, fmt.Errorf("decode status seq=%d: %w", rec.Seq, err)
		}
		return Event{Type: EventTypeStatus, Status: &s}, nil

	default:
		return Event{}, fmt.Errorf("seq=%d: unknown source %q", rec.Seq, rec.Source)
	}
}

// Replay applies events to an empty in-memory coordinator and returns the
// resulting view. opts should carry the identity and options the events
// were recorded under (dedup, match window).
func Replay(ctx context.Context, events []store.EventRecord, opts ...Option) (model.ViewModel, error) {
	c := New(store.NewMemory(), opts...)
	c.replaying = true

	for _, rec := range events {
		ev, err := EventFromRecord(rec)
		if err != nil {
			return model.ViewModel{}, err
		}
		if err := c.Process(ctx, ev); err != nil {
			return model.ViewModel{}, fmt.Errorf("replay seq=%d tag=%s: %w", rec.Seq, rec.Tag, err)
		}
	}
	return c.View(), nil
}
