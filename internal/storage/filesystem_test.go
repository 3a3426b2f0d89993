package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	key, err := store.Write(context.Background(), "/exports//pending.zip", []byte("v1"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "exports/pending.zip" {
		t.Fatalf("key = %q", key)
	}
	if _, err := store.Write(context.Background(), key, []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "exports", "pending.zip"))
	if err != nil || string(data) != "v2" {
		t.Fatalf("file = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "exports"))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "  ", ".", "../x.zip", "a/../../x.zip", ".."} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("sanitizeKey(%q) accepted", key)
		}
	}
	if got, err := sanitizeKey(`a\b.zip`); err != nil || got != "a/b.zip" {
		t.Fatalf("sanitizeKey backslash = %q, %v", got, err)
	}
}

func TestWriteHonorsCancelledContext(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "x.zip", nil); err == nil {
		t.Fatalf("expected context error")
	}
}
