package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/chatsync/internal/model"
	"github.com/roach88/chatsync/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 1 << 20
	sendBufferSize = 256

	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 30 * time.Second
)

// Client is a reconnecting WebSocket transport.
type Client struct {
	url        string
	header     http.Header
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	log        *slog.Logger

	mu   sync.Mutex
	send chan outbound // nil while disconnected
}

// outbound is an encoded command waiting for the write pump.
type outbound struct {
	tag  string
	data []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHeader sets request headers for the handshake (auth cookies, tokens).
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// WithDialer overrides websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the ws:// or wss:// url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		dialer:     websocket.DefaultDialer,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Listen connects and delivers frames to sink until ctx is cancelled,
// reconnecting with exponential backoff after every disconnect.
func (c *Client) Listen(ctx context.Context, sink Sink) error {
	backoff := c.minBackoff
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			sink.Status(false, model.NewTransportError("dial", err))
			c.log.Warn("websocket dial failed", "url", c.url, "retry_in", backoff, "error", err)
		} else {
			backoff = c.minBackoff
			sink.Status(true, nil)
			c.log.Info("websocket connected", "url", c.url)

			err = c.serve(ctx, conn, sink)
			if ctx.Err() != nil {
				return nil
			}
			sink.Status(false, err)
			c.log.Warn("websocket disconnected", "retry_in", backoff, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

// serve runs the pumps for one connection and returns the transport error
// that dropped it. A failed write wins over the read error it causes.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, sink Sink) error {
	send := make(chan outbound, sendBufferSize)
	c.mu.Lock()
	c.send = send
	c.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		c.mu.Lock()
		c.send = nil
		c.mu.Unlock()
		close(done)
		conn.Close()
	}()

	failed := make(chan error, 1)
	go c.writePump(conn, send, done, failed)

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err := c.readPump(conn, sink)
	select {
	case werr := <-failed:
		return werr
	default:
		return model.NewTransportError("read", err)
	}
}

func (c *Client) readPump(conn *websocket.Conn, sink Sink) error {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		sink.Frame(data)
	}
}

// writePump drains send. On a write error it reports to failed before
// closing the connection, so serve sees the cause once the read fails.
func (c *Client) writePump(conn *websocket.Conn, send <-chan outbound, done <-chan struct{}, failed chan<- error) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case out := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, out.data); err != nil {
				c.log.Warn("websocket write failed", "command", out.tag, "error", err)
				failed <- model.NewTransportError("send "+out.tag, err)
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				failed <- model.NewTransportError("ping", err)
				conn.Close()
				return
			}
		}
	}
}

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("not connected")

// Send encodes cmd and queues it on the current connection. It fails fast
// when disconnected or when the send buffer is full; nothing is retried.
// A write that fails after queueing drops the connection and is reported
// through Sink.Status with the command's tag.
func (c *Client) Send(ctx context.Context, cmd wire.Command) error {
	data, err := wire.Encode(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Tag(), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- outbound{tag: cmd.Tag(), data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("send buffer full")
	}
}
