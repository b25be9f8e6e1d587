// Package loader reads documents from a source and extracts their text.
// Parsing is best effort: a file that cannot be read or extracted is reported and
// skipped, but a missing root fails the whole load.
package loader

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
)

var (
	ErrRootNotFound      = errors.New("document root not found")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Formats in load order. Documents of one format are loaded before the next, so
// chunk_index assignment follows this order.
const (
	FormatText     = "txt"
	FormatPDF      = "pdf"
	FormatHTML     = "html"
	FormatMarkdown = "md"
)

var formatOrder = []string{FormatText, FormatPDF, FormatHTML, FormatMarkdown}

// Source provides documents for ingestion.
type Source interface {
	// Name identifies the source in logs: a directory or a repository path.
	Name() string
	Load(ctx context.Context) (*Result, error)
}

// Result is the outcome of a load.
type Result struct {
	Documents []document.Document
	Failed    []FailedDoc
}

// FailedDoc represents a document that could not be loaded.
type FailedDoc struct {
	Path   string
	Reason string
}

// DetectFormat maps a file name to a format by extension.
func DetectFormat(name string) (string, bool) {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == ".txt":
		return FormatText, true
	case ext == ".pdf":
		return FormatPDF, true
	case strings.HasPrefix(ext, ".htm"):
		return FormatHTML, true
	case ext == ".md" || ext == ".markdown":
		return FormatMarkdown, true
	default:
		return "", false
	}
}
