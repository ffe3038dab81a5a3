package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/roach88/chatsync/internal/model"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDocument returns a small view model touching every family.
func createTestDocument() model.ViewModel {
	doc := model.Empty()
	doc.Chats["bob"] = []model.Message{
		{Author: "bob", Content: "hi <there>", Timestamp: 100},
		{Author: "alice", Content: "hey", Timestamp: 101},
	}
	doc.DirectOrder = []string{"bob"}
	doc.Groups = []model.Group{
		{ID: "g1", Name: "team", Members: []string{"alice", "bob"}, CreatedBy: "alice", CreatedAt: 90},
	}
	doc.GroupMessages["g1"] = []model.Message{{Author: "bob", Content: "standup?", Timestamp: 110}}
	doc.GroupOrder = []string{"g1"}
	doc.Contacts = []model.Contact{{ID: "bob", Name: "Bob"}}
	doc.SelectedGroupID = "g1"
	return doc
}

// createTestEvent creates a push event record with a JSON payload.
func createTestEvent(t *testing.T, seq int64, tag string, payload any) EventRecord {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return EventRecord{Seq: seq, Source: SourcePush, Tag: tag, Payload: data}
}
