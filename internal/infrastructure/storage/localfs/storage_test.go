package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "doc-1_report.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := storage.Open(ctx, "doc-1_report.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("content = %q, want hello", raw)
	}
}

func TestOpenUnknownKeyFails(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := storage.Open(context.Background(), "missing.txt"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestTraversalKeysAreRejected(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for traversal key on save")
	}
	if _, err := storage.Open(ctx, "../../etc/passwd"); err == nil {
		t.Fatalf("expected error for traversal key on open")
	}
}
