package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/wire"
)

// recordingSink collects callbacks.
type recordingSink struct {
	mu      sync.Mutex
	frames  []string
	status  []bool
	lastErr error
}

func (s *recordingSink) Frame(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(data))
}

func (s *recordingSink) Status(connected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status, connected)
	s.lastErr = err
}

func (s *recordingSink) snapshot() ([]string, []bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...), append([]bool(nil), s.status...), s.lastErr
}

// newTestServer pushes frames to every client and records what it receives.
func newTestServer(t *testing.T, push []string) (*httptest.Server, <-chan string) {
	t.Helper()
	received := make(chan string, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range push {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_DeliversFramesAndSends(t *testing.T) {
	frame := `{"NewMessage":{"counterparty":"bob","author":"bob","content":"hi","timestamp":1}}`
	srv, received := newTestServer(t, []string{frame})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	c := NewClient(wsURL(srv), WithBackoff(10*time.Millisecond, 20*time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- c.Listen(ctx, sink) }()

	require.Eventually(t, func() bool {
		frames, _, _ := sink.snapshot()
		return len(frames) == 1
	}, 2*time.Second, 10*time.Millisecond)

	frames, status, _ := sink.snapshot()
	assert.Equal(t, frame, frames[0])
	assert.Equal(t, []bool{true}, status)

	require.Eventually(t, func() bool {
		return c.Send(ctx, wire.Send{Target: "bob", Message: "yo"}) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case got := <-received:
		assert.JSONEq(t, `{"Send":{"target":"bob","message":"yo"}}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the command")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1")
	err := c.Send(context.Background(), wire.GetMessages{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_DialFailureReportsTransportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	c := NewClient("ws://127.0.0.1:1/ws", WithBackoff(10*time.Millisecond, 10*time.Millisecond))
	go func() { _ = c.Listen(ctx, sink) }()

	require.Eventually(t, func() bool {
		_, status, _ := sink.snapshot()
		return len(status) > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, status, lastErr := sink.snapshot()
	assert.False(t, status[0])
	assert.True(t, model.IsTransportError(lastErr))
}

// cuttableConn fails every write once cut is set.
type cuttableConn struct {
	net.Conn
	cut *atomic.Bool
}

func (c cuttableConn) Write(p []byte) (int, error) {
	if c.cut.Load() {
		return 0, errors.New("wire cut")
	}
	return c.Conn.Write(p)
}

func TestClient_WriteFailureReportedWithCommand(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cut atomic.Bool
	dialer := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := (&net.Dialer{}).DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return cuttableConn{Conn: conn, cut: &cut}, nil
		},
	}

	sink := &recordingSink{}
	c := NewClient(wsURL(srv), WithDialer(dialer), WithBackoff(time.Hour, time.Hour))
	go func() { _ = c.Listen(ctx, sink) }()

	require.Eventually(t, func() bool {
		_, status, _ := sink.snapshot()
		return len(status) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cut.Store(true)
	require.NoError(t, c.Send(ctx, wire.Send{Target: "bob", Message: "yo"}), "queueing succeeds")

	require.Eventually(t, func() bool {
		_, status, _ := sink.snapshot()
		return len(status) == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, status, lastErr := sink.snapshot()
	assert.Equal(t, []bool{true, false}, status)
	require.Error(t, lastErr)
	assert.True(t, model.IsTransportError(lastErr))
	assert.Contains(t, lastErr.Error(), "send Send failed")
	assert.Contains(t, lastErr.Error(), "wire cut")
}

func TestFake_PushAndSend(t *testing.T) {
	f := NewFake()
	assert.False(t, f.Push([]byte(`{}`)), "push before listen")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{}
	go func() { _ = f.Listen(ctx, sink) }()
	<-f.Ready()

	require.NoError(t, f.PushEvent(wire.TagContactAdded, model.Contact{ID: "bob", Name: "Bob"}))
	frames, status, _ := sink.snapshot()
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"ContactAdded":{"id":"bob","name":"Bob"}}`, frames[0])
	assert.Equal(t, []bool{true}, status)

	require.NoError(t, f.Send(ctx, wire.GetGroups{}))
	f.FailSends(assert.AnError)
	assert.ErrorIs(t, f.Send(ctx, wire.GetContacts{}), assert.AnError)
	assert.Equal(t, []wire.Command{wire.GetGroups{}}, f.Sent())
}
