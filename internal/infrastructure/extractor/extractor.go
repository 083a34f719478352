// Package extractor pulls plain text out of stored documents.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
	"github.com/kirillkom/knowledge-agents/internal/core/ports"
)

// Extractor reads a document from object storage and extracts its text.
// The format is chosen by file extension, with the recorded MIME type
// as fallback for extension-less uploads. Unknown formats are treated
// as plain text.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	switch detectFormat(doc) {
	case formatPDF:
		return extractPDF(raw)
	case formatExcel:
		return extractExcel(raw)
	default:
		return extractPlain(raw, doc.Source)
	}
}

type docFormat int

const (
	formatPlain docFormat = iota
	formatPDF
	formatExcel
)

func detectFormat(doc *domain.Document) docFormat {
	switch strings.ToLower(filepath.Ext(doc.Source)) {
	case ".pdf":
		return formatPDF
	case ".xlsx":
		return formatExcel
	case "":
		switch strings.ToLower(doc.MimeType) {
		case "application/pdf":
			return formatPDF
		case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			return formatExcel
		}
	}
	return formatPlain
}
