package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestKVRoundTrip(t *testing.T) {
	db := testDB(t)

	if err := db.SetValue("session", `{"id":"u1"}`); err != nil {
		t.Fatal(err)
	}

	value, ok, err := db.GetValue("session")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || value != `{"id":"u1"}` {
		t.Errorf("GetValue = (%q, %v), want stored value", value, ok)
	}

	// Overwrite.
	if err := db.SetValue("session", `{"id":"u2"}`); err != nil {
		t.Fatal(err)
	}
	value, _, _ = db.GetValue("session")
	if value != `{"id":"u2"}` {
		t.Errorf("value = %q, want overwritten value", value)
	}
}

func TestKVMissing(t *testing.T) {
	db := testDB(t)

	_, ok, err := db.GetValue("absent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("GetValue for missing key should report ok=false")
	}
}

func TestKVDeleteIdempotent(t *testing.T) {
	db := testDB(t)

	if err := db.SetValue("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteValue("k"); err != nil {
		t.Fatal(err)
	}
	// Deleting again is fine.
	if err := db.DeleteValue("k"); err != nil {
		t.Errorf("second delete error = %v, want nil", err)
	}

	_, ok, _ := db.GetValue("k")
	if ok {
		t.Error("key should be gone after delete")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)

	payload := []byte(`[{"id":"p1"},{"id":"p2"}]`)
	if err := db.SaveSnapshot("home", payload, 2); err != nil {
		t.Fatal(err)
	}

	s, err := db.LoadSnapshot("home")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatal("snapshot not found")
	}
	if string(s.Payload) != string(payload) || s.ItemCount != 2 {
		t.Errorf("snapshot = (%s, %d), want stored payload and count", s.Payload, s.ItemCount)
	}
	if s.SavedAt == 0 {
		t.Error("SavedAt should be stamped")
	}

	// Overwrite replaces, not appends.
	if err := db.SaveSnapshot("home", []byte(`[]`), 0); err != nil {
		t.Fatal(err)
	}
	s, _ = db.LoadSnapshot("home")
	if s.ItemCount != 0 {
		t.Errorf("item_count = %d, want 0 after overwrite", s.ItemCount)
	}
}

func TestSnapshotMissing(t *testing.T) {
	db := testDB(t)

	s, err := db.LoadSnapshot("absent")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Error("LoadSnapshot for missing list should return nil")
	}
}

func TestSnapshotDelete(t *testing.T) {
	db := testDB(t)

	if err := db.SaveSnapshot("chats", []byte(`[]`), 0); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSnapshot("chats"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSnapshot("chats"); err != nil {
		t.Errorf("second delete error = %v, want nil", err)
	}

	s, _ := db.LoadSnapshot("chats")
	if s != nil {
		t.Error("snapshot should be gone after delete")
	}
}
