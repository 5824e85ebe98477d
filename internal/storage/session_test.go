package storage

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateSession(t *testing.T) {
	db := openTestDB(t)

	session, err := db.CreateSession("qwen-max", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID == "" {
		t.Error("session ID should not be empty")
	}
	if string(session.Metadata) != "{}" {
		t.Errorf("metadata = %s, want {}", session.Metadata)
	}
}

func TestGetSession(t *testing.T) {
	db := openTestDB(t)

	created, _ := db.CreateSession("qwen-plus", json.RawMessage(`{"title":"math"}`))
	got, err := db.GetSession(created.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.ID != created.ID || got.Model != "qwen-plus" {
		t.Errorf("got %+v", got)
	}
	if string(got.Metadata) != `{"title":"math"}` {
		t.Errorf("metadata = %s", got.Metadata)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not scanned")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.GetSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestEnsureSession(t *testing.T) {
	db := openTestDB(t)

	first, err := db.EnsureSession("s1", "qwen-max")
	if err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	second, err := db.EnsureSession("s1", "qwen-turbo")
	if err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if first.ID != "s1" || second.Model != "qwen-max" {
		t.Errorf("existing session should be returned unchanged, got %+v", second)
	}
}

func TestCreateSessionWithID_Tx(t *testing.T) {
	db := openTestDB(t)

	err := db.WithTx(func(tx *Tx) error {
		_, err := tx.CreateSessionWithID("tx-session", "qwen-max", nil)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
	if _, err := db.GetSession("tx-session"); err != nil {
		t.Errorf("session not committed: %v", err)
	}
}

func TestUpdateSessionModel(t *testing.T) {
	db := openTestDB(t)

	s, _ := db.CreateSession("qwen-max", nil)
	if err := db.UpdateSessionModel(s.ID, "qwen-turbo"); err != nil {
		t.Fatalf("UpdateSessionModel failed: %v", err)
	}
	got, _ := db.GetSession(s.ID)
	if got.Model != "qwen-turbo" {
		t.Errorf("model = %q", got.Model)
	}

	if err := db.UpdateSessionModel("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	db := openTestDB(t)

	s, _ := db.CreateSession("", nil)
	if err := db.AppendMessage(&Message{SessionID: s.ID, Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := db.DeleteSession(s.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := db.GetSession(s.ID); !errors.Is(err, ErrNotFound) {
		t.Error("session should be deleted")
	}
	// 外键级联删除消息
	if n, _ := db.CountMessages(s.ID); n != 0 {
		t.Errorf("messages = %d, want 0", n)
	}
	if err := db.DeleteSession(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		if _, err := db.CreateSession("", nil); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	all, err := db.ListSessions(0, 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("ListSessions = %d, %v", len(all), err)
	}

	page, err := db.ListSessions(2, 4)
	if err != nil || len(page) != 1 {
		t.Errorf("page = %d, %v", len(page), err)
	}
}

func TestPruneSessions(t *testing.T) {
	db := openTestDB(t)

	stale, _ := db.CreateSession("", nil)
	fresh, _ := db.CreateSession("", nil)
	_ = db.AppendMessage(&Message{SessionID: stale.ID, Role: "user", Content: "old"})

	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := db.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", old, stale.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := db.PruneSessions(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, err := db.GetSession(fresh.ID); err != nil {
		t.Errorf("fresh session pruned: %v", err)
	}
	if count, _ := db.CountMessages(stale.ID); count != 0 {
		t.Errorf("stale messages = %d, want 0", count)
	}
}
