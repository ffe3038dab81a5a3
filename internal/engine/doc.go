// Package engine implements the chatsync coordinator.
//
// The Coordinator owns the client state and is its only writer. Inbound
// push frames, snapshot fetch results, connectivity changes and local user
// actions are all turned into Events and applied one at a time by Run.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Transport callbacks, fetch goroutines and UI calls only enqueue. The Run
// goroutine dequeues, reconciles, persists and notifies subscribers, in
// that order, before touching the next event. This gives:
//   - Events applied in delivery order
//   - Every mutation durable before the next event is read
//   - No locks around the entity tables
//
// Event Processing Flow:
//  1. Restore the persisted document (state plus pending optimistic writes)
//  2. Start the transport listener and an asynchronous snapshot fetch
//  3. Run dequeues an event and routes it by type
//  4. The reconciler, optimistic tracker or selection controller mutates state
//  5. If state changed, the event and the new document are committed together
//  6. Outbound commands for local actions are sent after the commit
//  7. Subscribers receive a ViewModel copy
//
// A snapshot fetch in flight is never cancelled by pushes: its result is
// merged when it arrives, and the merge rules keep anything newer.
//
// ERROR HANDLING:
// Nothing the loop sees is fatal. Parse errors drop the frame, transport
// errors are recorded in the connectivity status, persistence errors are
// logged and the in-memory state stays authoritative.
package engine
