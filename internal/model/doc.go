// Package model provides the entity types shared by every chatsync package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Messages are immutable once created
//   - Timestamps are int64 seconds, never floats
//   - Conversation order is arrival order, never re-sorted by timestamp
//   - JSON tags follow the persisted document layout (snake_case entity
//     fields, camelCase family names inherited from the UI store)
package model
