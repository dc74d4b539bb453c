package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"splice/internal/history"
	"splice/internal/services"
)

func openStore(t *testing.T) (*history.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestRecentOrdersByOpenTime(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, p := range []string{"/p/a.splice", "/p/b.splice", "/p/c.splice"} {
		if err := store.RecordOpened(ctx, history.Project{Path: p, OpenedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("RecordOpened: %v", err)
		}
	}
	// reopening a moves it to the top without duplicating it
	if err := store.RecordOpened(ctx, history.Project{Path: "/p/a.splice", Title: "a", OpenedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("RecordOpened: %v", err)
	}

	recent, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}
	if recent[0].Path != "/p/a.splice" || recent[0].Title != "a" {
		t.Fatalf("top entry = %+v", recent[0])
	}
	if recent[1].Path != "/p/c.splice" || recent[2].Path != "/p/b.splice" {
		t.Fatalf("unexpected order %v %v", recent[1].Path, recent[2].Path)
	}

	last, ok, err := store.Last(ctx)
	if err != nil || !ok || last.Path != "/p/a.splice" {
		t.Fatalf("Last = %+v %v %v", last, ok, err)
	}

	if err := store.Forget(ctx, "/p/a.splice"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	limited, err := store.Recent(ctx, 1)
	if err != nil || len(limited) != 1 || limited[0].Path != "/p/c.splice" {
		t.Fatalf("Recent(1) after forget = %+v %v", limited, err)
	}
}

func TestLastOnEmptyHistory(t *testing.T) {
	store, _ := openStore(t)
	if _, ok, err := store.Last(context.Background()); ok || err != nil {
		t.Fatalf("Last on empty = %v %v", ok, err)
	}
}

func TestBackupCatalog(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := store.AddBackup(ctx, history.Backup{
			ProjectPath: "/p/a.splice",
			BackupPath:  filepath.Join("/b", "a-"+string(rune('0'+i))+".splice"),
			SizeBytes:   int64(100 + i),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AddBackup: %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := store.AddBackup(ctx, history.Backup{ProjectPath: "/p/other.splice", BackupPath: "/b/o.splice"}); err != nil {
		t.Fatalf("AddBackup: %v", err)
	}

	backups, err := store.Backups(ctx, "/p/a.splice")
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(backups) != 3 || backups[0].ID != ids[2] || backups[0].SizeBytes != 102 {
		t.Fatalf("unexpected backups %+v", backups)
	}
	if err := store.DeleteBackup(ctx, ids[2]); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	backups, _ = store.Backups(ctx, "/p/a.splice")
	if len(backups) != 2 {
		t.Fatalf("got %d backups after delete", len(backups))
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	store, err := history.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.RecordOpened(ctx, history.Project{Path: "/p/a.splice"}); err != nil {
		t.Fatalf("RecordOpened: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	store, err = history.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if _, ok, _ := store.Last(ctx); !ok {
		t.Fatal("history lost across reopen")
	}
}

func TestOpenWaitsForWriterLock(t *testing.T) {
	_, path := openStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	// flock locks are per open file description, so a second Open in the
	// same process contends like another process would.
	_, err := history.Open(ctx, path)
	if !errors.Is(err, services.ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict, got %v", err)
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(context.Background(), path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
