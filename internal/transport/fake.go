package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/chatsync/internal/wire"
)

// Fake is an in-process transport. Tests push frames with Push and inspect
// outbound commands with Sent.
type Fake struct {
	mu      sync.Mutex
	sink    Sink
	sent    []wire.Command
	sendErr error
	ready   chan struct{}
	once    sync.Once
}

// NewFake creates a disconnected fake.
func NewFake() *Fake {
	return &Fake{ready: make(chan struct{})}
}

// Listen reports a connection and blocks until ctx is cancelled.
func (f *Fake) Listen(ctx context.Context, sink Sink) error {
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()

	sink.Status(true, nil)
	f.once.Do(func() { close(f.ready) })

	<-ctx.Done()
	return nil
}

// Ready is closed once Listen has been called.
func (f *Fake) Ready() <-chan struct{} {
	return f.ready
}

// Push delivers a raw frame to the listener. Returns false if nothing is
// listening yet.
func (f *Fake) Push(frame []byte) bool {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink == nil {
		return false
	}
	sink.Frame(frame)
	return true
}

// PushEvent encodes ev as a frame tagged tag and delivers it.
func (f *Fake) PushEvent(tag string, ev any) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(map[string]json.RawMessage{tag: payload})
	if err != nil {
		return err
	}
	if !f.Push(frame) {
		return fmt.Errorf("fake transport: not listening")
	}
	return nil
}

// Disconnect reports a dropped connection.
func (f *Fake) Disconnect(err error) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	if sink != nil {
		sink.Status(false, err)
	}
}

// FailSends makes every subsequent Send return err. nil restores success.
func (f *Fake) FailSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// Send records cmd.
func (f *Fake) Send(_ context.Context, cmd wire.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return nil
}

// Sent returns a copy of the recorded commands.
func (f *Fake) Sent() []wire.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.Command, len(f.sent))
	copy(out, f.sent)
	return out
}
