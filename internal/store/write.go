package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/chatsync/internal/model"
)

// Source identifies where an applied event came from.
type Source string

const (
	SourcePush      Source = "push"
	SourceSnapshot  Source = "snapshot"
	SourceLocal     Source = "local"
	SourceTransport Source = "transport"
)

// EventRecord is one entry of the applied-event log.
//
// Payload is the event as the coordinator saw it: the inbound frame payload
// for push events, the snapshot for fetch results, the action arguments for
// local actions, the connectivity status for transport events.
type EventRecord struct {
	Seq     int64           `json:"seq"`
	Source  Source          `json:"source"`
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// Commit appends rec to the event log and replaces the state document in a
// single transaction.
//
// The event insert is idempotent on seq: re-committing an already logged seq
// leaves the log untouched but still replaces the document.
func (s *Store) Commit(ctx context.Context, rec EventRecord, doc model.ViewModel) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return model.NewPersistenceError("commit", err)
	}

	payload := string(rec.Payload)
	if payload == "" {
		payload = "null"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistenceError("commit", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback() // No-op if already committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (seq, source, tag, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, rec.Seq, string(rec.Source), rec.Tag, payload)
	if err != nil {
		return model.NewPersistenceError("commit", fmt.Errorf("insert event seq=%d: %w", rec.Seq, err))
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state (id, document, seq, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			seq = excluded.seq,
			updated_at = excluded.updated_at
	`, data, rec.Seq, time.Now().Unix())
	if err != nil {
		return model.NewPersistenceError("commit", fmt.Errorf("write state: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return model.NewPersistenceError("commit", fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Reset clears the state document and the event log.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewPersistenceError("reset", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM events`, `DELETE FROM state`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return model.NewPersistenceError("reset", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.NewPersistenceError("reset", fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
