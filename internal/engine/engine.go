package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/chatsync/internal/metrics"
	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/optimistic"
	"github.com/roach88/chatsync/internal/reconcile"
	"github.com/roach88/chatsync/internal/selection"
	"github.com/roach88/chatsync/internal/state"
	"github.com/roach88/chatsync/internal/store"
	"github.com/roach88/chatsync/internal/transport"
	"github.com/roach88/chatsync/internal/wire"
)

// Transport is the push channel. Implemented by transport.Client (WebSocket)
// and transport.Fake (tests).
type Transport interface {
	// Listen delivers inbound frames and connectivity changes to sink until
	// ctx is cancelled. Reconnecting is the transport's concern.
	Listen(ctx context.Context, sink transport.Sink) error

	// Send writes one outbound command.
	Send(ctx context.Context, cmd wire.Command) error
}

// Fetcher pulls a bulk snapshot. Implemented by snapshot.Client.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (model.Snapshot, error)
}

// DefaultConflictAge is how old a provisional entry must be before it is
// reported as a reconciliation conflict after a snapshot merge.
const DefaultConflictAge = 2 * optimistic.DefaultMatchWindow

// Coordinator is the single-writer sync loop.
//
// CRITICAL: All state mutations happen in the Run goroutine (or in Process
// when Run is not active). Everything else enqueues.
//
// Thread-safety model:
//   - Local action methods, Refresh, Subscribe, View: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Process, Restore: only when Run is not active
type Coordinator struct {
	persister store.Persister
	transport Transport
	fetcher   Fetcher
	metrics   *metrics.Metrics
	log       *slog.Logger

	self            string
	refreshInterval time.Duration
	dedup           bool
	matchWindow     time.Duration
	conflictAge     time.Duration
	ids             *pinnedIDs
	now             func() time.Time
	pinnedNow       int64
	replaying       bool

	clock *Clock
	queue *eventQueue

	// Owned by the loop goroutine.
	st         *state.State
	reconciler *reconcile.Reconciler
	tracker    *optimistic.Tracker
	selection  *selection.Controller
	deferred   map[string][]wire.GroupMessage

	fetching atomic.Bool

	viewMu sync.RWMutex
	view   model.ViewModel

	subMu   sync.Mutex
	subs    map[int]chan model.ViewModel
	nextSub int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTransport sets the push transport.
func WithTransport(t Transport) Option {
	return func(c *Coordinator) { c.transport = t }
}

// WithFetcher sets the snapshot fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Coordinator) { c.fetcher = f }
}

// WithIdentity sets the local node id, used as author and group creator.
func WithIdentity(self string) Option {
	return func(c *Coordinator) { c.self = self }
}

// WithRefreshInterval re-fetches the snapshot every d. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.refreshInterval = d }
}

// WithDedup enables exact-duplicate suppression for pushed messages.
func WithDedup() Option {
	return func(c *Coordinator) { c.dedup = true }
}

// WithMatchWindow overrides the optimistic message match window.
func WithMatchWindow(d time.Duration) Option {
	return func(c *Coordinator) { c.matchWindow = d }
}

// WithConflictAge overrides DefaultConflictAge.
func WithConflictAge(d time.Duration) Option {
	return func(c *Coordinator) { c.conflictAge = d }
}

// WithIDGenerator overrides the temp id generator.
func WithIDGenerator(g optimistic.IDGenerator) Option {
	return func(c *Coordinator) { c.ids.gen = g }
}

// WithNow overrides the wall clock used for optimistic timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithMetrics records counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New creates a Coordinator persisting through p. A nil p keeps state in
// memory only.
func New(p store.Persister, opts ...Option) *Coordinator {
	if p == nil {
		p = store.NewMemory()
	}
	c := &Coordinator{
		persister:   p,
		log:         slog.Default(),
		matchWindow: optimistic.DefaultMatchWindow,
		conflictAge: DefaultConflictAge,
		ids:         &pinnedIDs{gen: optimistic.UUIDv7Generator{}},
		now:         time.Now,
		clock:       NewClock(),
		queue:       newEventQueue(),
		deferred:    make(map[string][]wire.GroupMessage),
		subs:        make(map[int]chan model.ViewModel),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reset(state.New(), nil)
	return c
}

// reset installs st and rebuilds the components acting on it.
func (c *Coordinator) reset(st *state.State, pending []model.Provisional) {
	c.st = st
	c.tracker = optimistic.New(st,
		optimistic.WithIDGenerator(c.ids),
		optimistic.WithNow(c.wallClock),
		optimistic.WithMatchWindow(c.matchWindow),
		optimistic.WithLogger(c.log),
	)
	c.tracker.Restore(pending)
	c.deferred = heldGroupSends(c.tracker.Pending())

	ropts := []reconcile.Option{
		reconcile.WithConfirmer(c.tracker),
		reconcile.WithLogger(c.log),
	}
	if c.dedup {
		ropts = append(ropts, reconcile.WithDedup())
	}
	c.reconciler = reconcile.New(st, ropts...)
	c.selection = selection.New(st)
	c.publish()
}

// wallClock returns the pinned time while replaying a local action, the
// configured clock otherwise.
func (c *Coordinator) wallClock() time.Time {
	if c.pinnedNow != 0 {
		return time.Unix(c.pinnedNow, 0)
	}
	return c.now()
}

// Restore loads the persisted document. Connectivity is reset, and the
// reset logged, since it described the previous process.
func (c *Coordinator) Restore(ctx context.Context) error {
	doc, seq, found, err := c.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	c.clock = NewClockAt(seq)
	if !found {
		c.log.Info("no persisted state; starting empty")
		return nil
	}

	st := state.FromView(doc)
	c.reset(st, doc.Provisional)
	if st.Connected || st.LastError != "" {
		_ = c.applyStatus(ctx, Status{})
	}
	c.log.Info("state restored",
		"seq", seq,
		"chats", st.Chats.Len(),
		"groups", st.Groups.Len(),
		"contacts", st.Contacts.Len(),
		"pending", len(c.tracker.Pending()),
	)
	return nil
}

// Run restores persisted state, starts the transport and the initial
// snapshot fetch, then processes events until ctx is cancelled or Stop is
// called.
//
// ERROR HANDLING: On event processing failure, the error is logged with
// the event context and processing continues.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.Restore(ctx); err != nil {
		return err
	}
	c.log.Info("coordinator starting", "self", c.self, "seq", c.clock.Current())

	if c.transport != nil {
		go func() {
			if err := c.transport.Listen(ctx, sink{c}); err != nil && ctx.Err() == nil {
				c.log.Error("transport stopped", "error", err)
				c.queue.Enqueue(Event{Type: EventTypeStatus, Status: &Status{Error: err.Error()}})
			}
		}()
	}
	c.startFetch(ctx)
	if c.refreshInterval > 0 && c.fetcher != nil {
		go c.refreshLoop(ctx)
	}

	for {
		event, ok := c.queue.TryDequeue()
		if ok {
			c.metrics.SetQueueDepth(c.queue.Len())
			if err := c.Process(ctx, event); err != nil {
				logEventError(c.log, event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			c.log.Info("coordinator stopping: context cancelled")
			c.queue.Close()
			c.closeSubscribers()
			return ctx.Err()

		case <-c.queue.Wait():
			if c.queue.Len() == 0 {
				// Signal channel closed and nothing left.
				c.log.Info("coordinator stopping: queue closed")
				c.closeSubscribers()
				return nil
			}
		}
	}
}

// Stop closes the event queue, which makes Run return once it is drained.
func (c *Coordinator) Stop() {
	c.queue.Close()
}

// Enqueue submits an event for processing by the Run loop.
// Returns false if the coordinator has been stopped.
func (c *Coordinator) Enqueue(ev Event) bool {
	return c.queue.Enqueue(ev)
}

// Process applies one event synchronously.
// CRITICAL: Only from the Run goroutine, or when Run is not active.
func (c *Coordinator) Process(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventTypePush:
		return c.processPush(ctx, ev.Frame)
	case EventTypeSnapshot:
		return c.processSnapshot(ctx, ev.Snapshot, ev.FetchErr)
	case EventTypeLocal:
		if ev.Action == nil {
			return fmt.Errorf("local event missing action")
		}
		res := c.processLocal(ctx, ev.Action)
		if ev.reply != nil {
			ev.reply <- res
		}
		return res.Err
	case EventTypeStatus:
		if ev.Status == nil {
			return fmt.Errorf("status event missing status")
		}
		return c.applyStatus(ctx, *ev.Status)
	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

// View returns the latest published view model. Safe from any goroutine.
func (c *Coordinator) View() model.ViewModel {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view
}

// Pending returns the provisional entries.
// Only from the Run goroutine, or when Run is not active.
func (c *Coordinator) Pending() []model.Provisional {
	return c.tracker.Pending()
}

// Seq returns the seq of the last committed event.
func (c *Coordinator) Seq() int64 {
	return c.clock.Current()
}

// Subscribe registers for view updates. The channel always holds the most
// recent view: a slow reader skips intermediate ones. cancel unregisters.
func (c *Coordinator) Subscribe() (<-chan model.ViewModel, func()) {
	ch := make(chan model.ViewModel, 1)
	ch <- c.View()

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// publish snapshots state into the shared view and notifies subscribers.
func (c *Coordinator) publish() {
	v := c.st.View()
	v.Provisional = c.tracker.Pending()

	c.viewMu.Lock()
	c.view = v
	c.viewMu.Unlock()

	c.metrics.SetPending(len(v.Provisional))

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		// Replace an unread view with the newer one.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (c *Coordinator) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// commit persists the current state with the event that produced it and
// publishes the new view. A persistence failure is logged: in-memory state
// stays authoritative and the next commit writes the full document again.
func (c *Coordinator) commit(ctx context.Context, source store.Source, tag string, payload any) {
	c.metrics.Event(string(source), tag)

	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("encode event payload", "tag", tag, "error", err)
		data = []byte("null")
	}

	doc := c.st.View()
	doc.Provisional = c.tracker.Pending()
	rec := store.EventRecord{Seq: c.clock.Next(), Source: source, Tag: tag, Payload: data}

	start := time.Now()
	if err := c.persister.Commit(ctx, rec, doc); err != nil {
		c.metrics.Error(string(model.ErrCodePersistence))
		c.log.Error("persist state", "seq", rec.Seq, "tag", tag, "error", err)
	}
	c.metrics.ObserveCommit(time.Since(start))

	c.publish()
}

// observe logs and counts a reconciliation outcome.
func (c *Coordinator) observe(ch reconcile.Change) {
	c.metrics.Change(string(ch.Family), string(ch.Action))
	if !ch.Mutated() {
		return
	}
	c.log.Debug("state changed", "family", ch.Family, "key", ch.Key, "action", ch.Action)
	for _, s := range ch.Swaps {
		c.log.Info("provisional superseded", "temp_id", s.TempID, "id", s.ConfirmedID, "migrated", s.Migrated)
	}
}

// pinnedIDs lets a replayed local action reuse the temp id it was first
// assigned.
type pinnedIDs struct {
	gen  optimistic.IDGenerator
	next string
}

func (p *pinnedIDs) Generate() string {
	if p.next != "" {
		id := p.next
		p.next = ""
		return id
	}
	return p.gen.Generate()
}

func (p *pinnedIDs) pin(tempID string) {
	p.next = strings.TrimPrefix(tempID, model.TempPrefix)
}

// sink adapts transport callbacks to queued events.
type sink struct{ c *Coordinator }

var _ transport.Sink = sink{}

func (s sink) Frame(data []byte) {
	frame := append(json.RawMessage(nil), data...)
	s.c.queue.Enqueue(Event{Type: EventTypePush, Frame: frame})
}

func (s sink) Status(connected bool, err error) {
	st := &Status{Connected: connected}
	if err != nil {
		st.Error = err.Error()
	}
	s.c.queue.Enqueue(Event{Type: EventTypeStatus, Status: st})
}
