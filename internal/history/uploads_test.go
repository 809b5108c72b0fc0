package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imgup/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history", "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAddAndListUploads(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, hash := range []string{"dh1", "dh2", "dh3"} {
		upload := &models.Upload{
			Path:       "/tmp/" + hash + ".png",
			Link:       "https://i.example.com/" + hash + ".png",
			DeleteHash: hash,
			Digest:     "blake2b-256:" + hash,
			SizeBytes:  int64(100 + i),
			UploadedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.AddUpload(ctx, upload); err != nil {
			t.Fatalf("add %s: %v", hash, err)
		}
		if upload.ID == "" {
			t.Fatalf("expected generated id for %s", hash)
		}
	}

	uploads, err := st.ListUploads(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploads))
	}
	if uploads[0].DeleteHash != "dh3" || uploads[1].DeleteHash != "dh2" {
		t.Fatalf("expected newest first, got %q, %q", uploads[0].DeleteHash, uploads[1].DeleteHash)
	}
	if uploads[0].Status != models.UploadStatusActive {
		t.Fatalf("expected active status, got %q", uploads[0].Status)
	}
	if !uploads[0].UploadedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected uploaded_at %v", uploads[0].UploadedAt)
	}
	if uploads[0].SizeBytes != 102 {
		t.Fatalf("expected size 102, got %d", uploads[0].SizeBytes)
	}
}

func TestAddUploadRequiresDeleteHash(t *testing.T) {
	st := testStore(t)
	if err := st.AddUpload(context.Background(), &models.Upload{Link: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMarkScheduledAndDeleted(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	for _, hash := range []string{"a", "b"} {
		if err := st.AddUpload(ctx, &models.Upload{Link: "l-" + hash, DeleteHash: hash, Digest: "d-" + hash}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	deleteAfter := time.Now().Add(10 * time.Second).UTC().Truncate(time.Millisecond)
	if err := st.MarkScheduled(ctx, []string{"a", "b"}, deleteAfter); err != nil {
		t.Fatalf("mark scheduled: %v", err)
	}
	if err := st.MarkDeleted(ctx, "a"); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	if err := st.MarkDeleted(ctx, "unknown"); err != nil {
		t.Fatalf("unknown handle should be ignored: %v", err)
	}

	uploads, err := st.ListUploads(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byHash := map[string]models.Upload{}
	for _, u := range uploads {
		byHash[u.DeleteHash] = u
	}

	a := byHash["a"]
	if a.Status != models.UploadStatusDeleted || a.DeletedAt == nil {
		t.Fatalf("expected a deleted, got %+v", a)
	}
	b := byHash["b"]
	if b.Status != models.UploadStatusScheduled {
		t.Fatalf("expected b scheduled, got %q", b.Status)
	}
	if b.DeleteAfter == nil || !b.DeleteAfter.Equal(deleteAfter) {
		t.Fatalf("expected delete_after %v, got %v", deleteAfter, b.DeleteAfter)
	}
}

func TestFindByDigest(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.AddUpload(ctx, &models.Upload{Link: "l1", DeleteHash: "h1", Digest: "same"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	found, err := st.FindByDigest(ctx, "same")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.DeleteHash != "h1" {
		t.Fatalf("expected h1, got %+v", found)
	}

	if err := st.MarkDeleted(ctx, "h1"); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	found, err = st.FindByDigest(ctx, "same")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("deleted uploads must not match, got %+v", found)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st.AddUpload(context.Background(), &models.Upload{Link: "l", DeleteHash: "h"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	uploads, err := st.ListUploads(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(uploads) != 1 {
		t.Fatalf("expected 1 upload after reopen, got %d", len(uploads))
	}
}

func TestOpenAppliesSchema(t *testing.T) {
	st := testStore(t)
	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if want := schemaSteps[len(schemaSteps)-1].version; version != want {
		t.Fatalf("expected schema v%d, got v%d", want, version)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	st.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestSqliteDSN(t *testing.T) {
	dsn, err := sqliteDSN("/tmp/a b/history.db")
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	if !strings.HasPrefix(dsn, "file:///tmp/a%20b/history.db?") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	if !strings.Contains(dsn, "busy_timeout%285000%29") {
		t.Fatalf("expected busy timeout pragma, got %q", dsn)
	}
	if _, err := sqliteDSN(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
