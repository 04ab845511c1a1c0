package store

import (
	"database/sql"
	"time"
)

// Snapshot is the last successful refresh of a named list, persisted
// so a restarted client can render instantly while the first network
// refresh runs. Warm-start data only; the next refresh is authoritative.
type Snapshot struct {
	ListKey   string
	Payload   []byte
	ItemCount int
	SavedAt   int64
}

// SaveSnapshot overwrites the snapshot for the given list.
func (db *DB) SaveSnapshot(listKey string, payload []byte, itemCount int) error {
	_, err := db.Exec(`
		INSERT INTO snapshots (list_key, payload, item_count, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(list_key) DO UPDATE SET
			payload = excluded.payload,
			item_count = excluded.item_count,
			saved_at = excluded.saved_at`,
		listKey, string(payload), itemCount, time.Now().UnixMilli())
	return err
}

// LoadSnapshot returns the snapshot for the given list, or nil if none exists.
func (db *DB) LoadSnapshot(listKey string) (*Snapshot, error) {
	var s Snapshot
	var payload string
	err := db.QueryRow(`
		SELECT list_key, payload, item_count, saved_at
		FROM snapshots WHERE list_key = ?`, listKey).
		Scan(&s.ListKey, &payload, &s.ItemCount, &s.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Payload = []byte(payload)
	return &s, nil
}

// DeleteSnapshot removes the snapshot for the given list. Idempotent.
func (db *DB) DeleteSnapshot(listKey string) error {
	_, err := db.Exec(`DELETE FROM snapshots WHERE list_key = ?`, listKey)
	return err
}
