// Package reconcile merges snapshots and push events into a client State.
//
// MERGE POLICY:
//
// A snapshot is a floor, not a ceiling. Every conversation key, group id and
// contact id present only in local state survives a merge: it was added by a
// push event or an optimistic write that raced the fetch.
//
// Message sequences: the snapshot's sequence replaces the local one only if
// the local one is empty or a strict prefix of it. Otherwise the local
// sequence wins, since it holds push events the fetch had not seen.
//
// Groups: a snapshot only adds groups that are not known locally. A known
// group keeps its local header, which push events (NewGroup, MemberAdded,
// MemberRemoved, bulk Groups) keep current.
//
// Push events are applied in delivery order and never re-sorted by timestamp.
// Appends never remove or reorder earlier messages.
//
// Temp groups are superseded, not duplicated: a confirmed group whose name
// and creator match a pending temp group takes over the temp group's
// messages, and the temp entry is deleted.
package reconcile
