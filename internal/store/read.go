package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chatsync/internal/model"
)

// Load returns the persisted state document and the seq of the event that
// produced it. found is false when nothing has been committed yet.
func (s *Store) Load(ctx context.Context) (model.ViewModel, int64, bool, error) {
	var (
		data string
		seq  int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT document, seq FROM state WHERE id = 1`).Scan(&data, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Empty(), 0, false, nil
	}
	if err != nil {
		return model.ViewModel{}, 0, false, model.NewPersistenceError("load", err)
	}

	doc, err := unmarshalDocument(data)
	if err != nil {
		return model.ViewModel{}, 0, false, model.NewPersistenceError("load", err)
	}
	return doc, seq, true, nil
}

// ReadEvents returns every logged event with seq > afterSeq, ordered by seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadEvents(ctx context.Context, afterSeq int64) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, source, tag, payload
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var (
			rec     EventRecord
			source  string
			payload string
		)
		if err := rows.Scan(&rec.Seq, &source, &rec.Tag, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Source = Source(source)
		rec.Payload = []byte(payload)
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest logged seq, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

// CountEvents returns the number of logged events per tag.
func (s *Store) CountEvents(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag, COUNT(*) FROM events GROUP BY tag`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			tag string
			n   int
		)
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[tag] = n
	}
	return counts, rows.Err()
}
