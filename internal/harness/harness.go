package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/chatsync/internal/engine"
	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/store"
	"github.com/roach88/chatsync/internal/testutil"
	"github.com/roach88/chatsync/internal/transport"
)

// Defaults for scenarios that leave them unset.
const (
	DefaultSelf  = "alice"
	DefaultEpoch = int64(1_700_000_000)
)

// Harness is the scenario execution context.
type Harness struct {
	store     *store.Store
	coord     *engine.Coordinator
	transport *transport.Fake
	clock     *testutil.ManualClock
	logger    *slog.Logger
	opts      []engine.Option
	events    []store.EventRecord
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and coordinator
// 2. Apply steps in order, checking expect clauses
// 3. Collect the committed trace, outbound commands and final view
// 4. Evaluate assertions
//
// Step failures are recorded in the result; only infrastructure failures
// return an error.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := newHarness(st, scenario)
	ctx := context.Background()

	if err := h.coord.Restore(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Ctx: ctx, Events: h.events, Options: h.opts}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, s *Scenario) *Harness {
	self := s.Self
	if self == "" {
		self = DefaultSelf
	}
	epoch := s.Epoch
	if epoch == 0 {
		epoch = DefaultEpoch
	}

	// Replay needs the options that shape reconciliation, nothing else.
	opts := []engine.Option{engine.WithIdentity(self)}
	if s.Dedup {
		opts = append(opts, engine.WithDedup())
	}
	if s.MatchWindow != "" {
		d, _ := time.ParseDuration(s.MatchWindow)
		opts = append(opts, engine.WithMatchWindow(d))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewManualClockUnix(epoch)
	tr := transport.NewFake()
	coord := engine.New(st, append(opts,
		engine.WithNow(clock.Now),
		engine.WithIDGenerator(testutil.NewSequentialIDs()),
		engine.WithTransport(tr),
		engine.WithLogger(logger),
	)...)

	return &Harness{
		store:     st,
		coord:     coord,
		transport: tr,
		clock:     clock,
		logger:    logger.With("component", "harness"),
		opts:      append(opts, engine.WithLogger(logger)),
	}
}

// executeStep applies one step and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	var (
		res    engine.Result
		err    error
		action bool
	)

	switch {
	case step.Push != nil:
		frame, mErr := json.Marshal(step.Push)
		if mErr != nil {
			return fmt.Errorf("step %d: encode push: %w", i, mErr)
		}
		err = h.coord.Process(ctx, engine.Event{Type: engine.EventTypePush, Frame: frame})

	case step.Raw != "":
		err = h.coord.Process(ctx, engine.Event{Type: engine.EventTypePush, Frame: json.RawMessage(step.Raw)})

	case step.Snapshot != nil:
		snap, dErr := decodeSnapshot(step.Snapshot)
		if dErr != nil {
			return fmt.Errorf("step %d: %w", i, dErr)
		}
		err = h.coord.Process(ctx, engine.Event{Type: engine.EventTypeSnapshot, Snapshot: &snap})

	case step.FetchError != "":
		err = h.coord.Process(ctx, engine.Event{Type: engine.EventTypeSnapshot, FetchErr: errors.New(step.FetchError)})

	case step.Status != nil:
		err = h.coord.Process(ctx, engine.Event{
			Type:   engine.EventTypeStatus,
			Status: &engine.Status{Connected: step.Status.Connected, Error: step.Status.Error},
		})

	case step.Action != nil:
		action = true
		res = h.coord.Apply(ctx, engine.Action{
			Kind:    engine.ActionKind(step.Action.Kind),
			Target:  step.Action.Target,
			Content: step.Action.Content,
			Name:    step.Action.Name,
			Members: step.Action.Members,
		})
		err = res.Err

	case step.Advance != "":
		d, _ := time.ParseDuration(step.Advance)
		h.clock.Advance(d)

	case step.FailSends != nil:
		if *step.FailSends == "" {
			h.transport.FailSends(nil)
		} else {
			h.transport.FailSends(errors.New(*step.FailSends))
		}
	}

	h.logger.Debug("step applied", "step", i, "error", err)
	h.checkExpect(i, step.Expect, res, action, err, result)
	return nil
}

// checkExpect compares a step's outcome with its expect clause.
func (h *Harness) checkExpect(i int, exp *ExpectClause, res engine.Result, action bool, err error, result *Result) {
	if exp == nil || exp.Error == "" {
		if err != nil {
			result.AddError(fmt.Sprintf("step %d: unexpected error: %v", i, err))
			return
		}
	} else {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("step %d: expected error containing %q, got none", i, exp.Error))
		case !strings.Contains(err.Error(), exp.Error):
			result.AddError(fmt.Sprintf("step %d: expected error containing %q, got %q", i, exp.Error, err.Error()))
		}
		return
	}
	if exp == nil {
		return
	}

	if exp.TempID != "" && (!action || res.TempID != exp.TempID) {
		result.AddError(fmt.Sprintf("step %d: expected temp id %q, got %q", i, exp.TempID, res.TempID))
	}
	if exp.Created != nil && (!action || res.Created != *exp.Created) {
		result.AddError(fmt.Sprintf("step %d: expected created=%v, got %v", i, *exp.Created, res.Created))
	}
}

// collect reads the trace back from the store and records outbound
// commands and the final view.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	events, err := h.store.ReadEvents(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	h.events = events
	for _, ev := range events {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     ev.Seq,
			Source:  string(ev.Source),
			Tag:     ev.Tag,
			Payload: decodeJSON(ev.Payload),
		})
	}

	for _, cmd := range h.transport.Sent() {
		data, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("failed to encode sent %s: %w", cmd.Tag(), err)
		}
		result.Sent = append(result.Sent, SentCommand{Tag: cmd.Tag(), Payload: decodeJSON(data)})
	}

	result.View = h.coord.View()
	return nil
}

func decodeSnapshot(raw map[string]any) (model.Snapshot, error) {
	var snap model.Snapshot
	data, err := json.Marshal(raw)
	if err != nil {
		return snap, fmt.Errorf("encode snapshot: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// decodeJSON turns data into generic JSON values (numbers as float64).
func decodeJSON(data []byte) any {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}

// normalize maps YAML-decoded values onto the shapes decodeJSON produces,
// so expected and actual values compare with reflect.DeepEqual.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return decodeJSON(data)
}
