package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_FreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = os.Stat(path)
	require.NoError(t, err, "database file should exist after Open")

	last, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestOpen_ReopenKeepsCommittedState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.db")

	first, err := Open(path)
	require.NoError(t, err)
	rec := createTestEvent(t, 1, "ContactAdded", map[string]string{"id": "bob", "name": "Bob"})
	require.NoError(t, first.Commit(ctx, rec, createTestDocument()))
	require.NoError(t, first.Close())

	// Schema and migrations must tolerate an existing database.
	for range 2 {
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	doc, seq, found, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, []string{"bob"}, doc.DirectOrder)

	events, err := s.ReadEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ContactAdded", events[0].Tag)
}

func TestOpen_UnwritableLocation(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "chat.db"))
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	t.Run("zero store", func(t *testing.T) {
		assert.NoError(t, (&Store{}).Close())
	})

	t.Run("twice", func(t *testing.T) {
		s, err := Open(filepath.Join(t.TempDir(), "chat.db"))
		require.NoError(t, err)
		require.NoError(t, s.Close())
		_ = s.Close()
	})
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for pragma, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	} {
		t.Run(pragma, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(pragma, want))
		})
	}
}

func TestSchema(t *testing.T) {
	s := createTestStore(t)

	assert.ElementsMatch(t, []string{"id", "document", "seq", "updated_at"}, columnsOf(t, s.DB(), "state"))
	assert.ElementsMatch(t, []string{"seq", "source", "tag", "payload"}, columnsOf(t, s.DB(), "events"))
	assert.Contains(t, indexesOf(t, s.DB(), "events"), "idx_events_tag")
}

func TestSchema_Constraints(t *testing.T) {
	s := createTestStore(t)

	_, err := s.DB().Exec(`INSERT INTO state (id, document, seq, updated_at) VALUES (2, '{}', 0, 0)`)
	assert.Error(t, err, "state holds a single document row")

	_, err = s.DB().Exec(`INSERT INTO events (seq, source, tag, payload) VALUES (1, 'bogus', 'X', '{}')`)
	assert.Error(t, err, "unknown event sources are rejected")

	for _, src := range []Source{SourcePush, SourceSnapshot, SourceLocal, SourceTransport} {
		_, err := s.DB().Exec(`INSERT INTO events (seq, source, tag, payload) VALUES (NULL, ?, 'X', '{}')`, string(src))
		assert.NoError(t, err, "source %s", src)
	}
}

func TestMigration_Version(t *testing.T) {
	s := createTestStore(t)
	assert.Equal(t, currentSchemaVersion, userVersion(t, s.DB()))
}

func TestMigration_AddsTagIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	// A database written before the tag index existed.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE state (id INTEGER PRIMARY KEY CHECK (id = 1), document TEXT NOT NULL, seq INTEGER NOT NULL, updated_at INTEGER NOT NULL);
		CREATE TABLE events (seq INTEGER PRIMARY KEY, source TEXT NOT NULL, tag TEXT NOT NULL, payload TEXT NOT NULL);
		PRAGMA user_version = 0;
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	assert.Equal(t, currentSchemaVersion, userVersion(t, s.DB()))
	assert.Contains(t, indexesOf(t, s.DB(), "events"), "idx_events_tag")
}

func userVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var v int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&v))
	return v
}

func columnsOf(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	return pragmaNames(t, db, `SELECT name FROM pragma_table_info(?)`, table)
}

func indexesOf(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	return pragmaNames(t, db, `SELECT name FROM pragma_index_list(?)`, table)
}

func pragmaNames(t *testing.T, db *sql.DB, query, table string) []string {
	t.Helper()
	rows, err := db.Query(query, table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}
