package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "articles.json")

	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Insert(ctx, article("business", "Markets Rally")); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Find(ctx, "business")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "Markets Rally" {
		t.Fatalf("unexpected articles after reopen: %+v", got)
	}
	if got[0].Image == "" || got[0].Content == "" {
		t.Errorf("fields lost on round trip: %+v", got[0])
	}
}

func TestFileStore_DeleteManyCount(t *testing.T) {
	ctx := context.Background()
	fs, _ := NewFileStore(filepath.Join(t.TempDir(), "a.json"))

	_ = fs.Insert(ctx, article("sports", "Final"))
	_ = fs.Insert(ctx, article("sports", "Transfer"))

	n, err := fs.DeleteMany(ctx, "sports")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	if n, _ := fs.DeleteMany(ctx, "sports"); n != 0 {
		t.Errorf("second delete removed %d", n)
	}
}

func TestOpen_FileScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	b, err := Open(context.Background(), "file://"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if _, ok := b.(*FileStore); !ok {
		t.Errorf("expected *FileStore, got %T", b)
	}
}

func TestOpen_UnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "mongodb://localhost/db"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
