package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

type storageFake struct {
	data    map[string][]byte
	openErr error
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = raw
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	raw, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("unknown key: %s", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func TestExtractPlainText(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"k1": []byte("  hello knowledge base \n"),
	}}
	extractor := NewExtractor(storage)
	doc := &domain.Document{ID: "doc-1", Source: "notes.txt", StoragePath: "k1"}

	text, err := extractor.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello knowledge base" {
		t.Fatalf("Extract() = %q, want trimmed text", text)
	}
}

func TestExtractRejectsBinaryAsPlainText(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"k1": {0xff, 0xfe, 0x00, 0x01},
	}}
	extractor := NewExtractor(storage)
	doc := &domain.Document{ID: "doc-1", Source: "blob.bin", StoragePath: "k1"}

	if _, err := extractor.Extract(context.Background(), doc); err == nil {
		t.Fatalf("expected error for non-utf8 content")
	}
}

func TestExtractRoutesPDFByExtension(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"k1": []byte("not a real pdf"),
	}}
	extractor := NewExtractor(storage)
	doc := &domain.Document{ID: "doc-1", Source: "guide.pdf", StoragePath: "k1"}

	_, err := extractor.Extract(context.Background(), doc)
	if err == nil || !strings.Contains(err.Error(), "open pdf") {
		t.Fatalf("expected pdf parse error, got %v", err)
	}
}

func TestExtractRoutesPDFByMimeType(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"k1": []byte("not a real pdf"),
	}}
	extractor := NewExtractor(storage)
	doc := &domain.Document{ID: "doc-1", Source: "noext", MimeType: "application/pdf", StoragePath: "k1"}

	_, err := extractor.Extract(context.Background(), doc)
	if err == nil || !strings.Contains(err.Error(), "open pdf") {
		t.Fatalf("expected pdf parse error, got %v", err)
	}
}

func TestExtractRoutesSpreadsheetByExtension(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"k1": []byte("not a real spreadsheet"),
	}}
	extractor := NewExtractor(storage)
	doc := &domain.Document{ID: "doc-1", Source: "data.xlsx", StoragePath: "k1"}

	_, err := extractor.Extract(context.Background(), doc)
	if err == nil || !strings.Contains(err.Error(), "open spreadsheet") {
		t.Fatalf("expected spreadsheet parse error, got %v", err)
	}
}

func TestExtractUnknownExtensionFallsBackToPlainText(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"k1": []byte("plain content"),
	}}
	extractor := NewExtractor(storage)
	doc := &domain.Document{ID: "doc-1", Source: "readme.weird", StoragePath: "k1"}

	text, err := extractor.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "plain content" {
		t.Fatalf("Extract() = %q, want plain content", text)
	}
}

func TestExtractPropagatesStorageError(t *testing.T) {
	storage := &storageFake{openErr: fmt.Errorf("disk gone")}
	extractor := NewExtractor(storage)
	doc := &domain.Document{ID: "doc-1", Source: "notes.txt", StoragePath: "k1"}

	if _, err := extractor.Extract(context.Background(), doc); err == nil {
		t.Fatalf("expected storage error")
	}
}
