package testutil

import (
	"context"
	"sync"

	"github.com/roach88/chatsync/internal/model"
)

// StubFetcher returns a canned snapshot. When gated, each fetch blocks
// until Release is called, so tests can interleave pushes with a fetch in
// flight.
type StubFetcher struct {
	mu       sync.Mutex
	snapshot model.Snapshot
	err      error
	calls    int
	gate     chan struct{}
	started  chan struct{}
}

// NewStubFetcher returns snap on every fetch.
func NewStubFetcher(snap model.Snapshot) *StubFetcher {
	return &StubFetcher{snapshot: snap, started: make(chan struct{}, 16)}
}

// Gated makes fetches block until Release.
func (f *StubFetcher) Gated() *StubFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f
}

// Fail makes subsequent fetches return err.
func (f *StubFetcher) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Started receives once per fetch, as soon as it begins.
func (f *StubFetcher) Started() <-chan struct{} {
	return f.started
}

// Release unblocks a gated fetch.
func (f *StubFetcher) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Calls returns how many fetches were issued.
func (f *StubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FetchSnapshot implements engine.Fetcher.
func (f *StubFetcher) FetchSnapshot(ctx context.Context) (model.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Snapshot{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	return f.snapshot, nil
}
