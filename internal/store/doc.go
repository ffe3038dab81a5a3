// Package store provides SQLite-backed durable storage for chatsync.
//
// The store keeps two things:
//   - State: one JSON document holding every entity family of the view model
//     (hyperware_chats, groups, groupMessages, contacts, selection ids,
//     provisional entries). It is replaced as a whole, never patched per
//     family, so a crash can never leave families out of step.
//   - Events: an append-only log of every event the coordinator applied,
//     keyed by the coordinator's logical seq. Replaying the log from an
//     empty state must reproduce the stored document.
//
// Each Commit writes the event and the resulting document in one
// transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
