// Package transport carries push frames between the coordinator and the
// chat server.
//
// Client is a WebSocket client that reconnects with backoff. Frames are
// single-key JSON objects (see package wire); the client does not look
// inside them. Fake is an in-process transport for tests.
package transport

// Sink receives transport callbacks. Implementations must be safe for
// concurrent use and must not block.
type Sink interface {
	// Frame delivers one inbound text frame.
	Frame(data []byte)

	// Status reports a connect (connected=true) or a disconnect with its
	// cause.
	Status(connected bool, err error)
}
