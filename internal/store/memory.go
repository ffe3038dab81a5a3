package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/roach88/chatsync/internal/model"
)

// Memory is an in-process Persister. Documents are round-tripped through
// JSON on every commit so tests observe exactly what SQLite would store.
type Memory struct {
	mu     sync.Mutex
	doc    string
	seq    int64
	found  bool
	events []EventRecord

	// FailCommit, when set, is returned by every Commit.
	FailCommit error
}

var _ Persister = (*Memory)(nil)

// NewMemory returns an empty in-memory persister.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (model.ViewModel, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.found {
		return model.Empty(), 0, false, nil
	}
	doc, err := unmarshalDocument(m.doc)
	if err != nil {
		return model.ViewModel{}, 0, false, model.NewPersistenceError("load", err)
	}
	return doc, m.seq, true, nil
}

func (m *Memory) Commit(_ context.Context, rec EventRecord, doc model.ViewModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCommit != nil {
		return model.NewPersistenceError("commit", m.FailCommit)
	}
	data, err := marshalDocument(doc)
	if err != nil {
		return model.NewPersistenceError("commit", err)
	}

	if !slices.ContainsFunc(m.events, func(e EventRecord) bool { return e.Seq == rec.Seq }) {
		rec.Payload = append(json.RawMessage(nil), rec.Payload...)
		m.events = append(m.events, rec)
	}
	m.doc, m.seq, m.found = data, rec.Seq, true
	return nil
}

// Events returns a copy of the logged events.
func (m *Memory) Events() []EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// Commits returns how many events were logged.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
