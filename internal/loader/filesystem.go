package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
)

// FileSystemSource loads every supported file under a root directory, recursively.
type FileSystemSource struct {
	root   string
	logger *slog.Logger
}

// NewFileSystemSource creates a source rooted at root.
func NewFileSystemSource(root string, logger *slog.Logger) *FileSystemSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystemSource{root: root, logger: logger}
}

// Name returns the root directory.
func (s *FileSystemSource) Name() string {
	return s.root
}

// Load reads documents grouped by format (txt, pdf, html, md) and sorted by path
// within each group. Document sources are the walked paths, root included.
func (s *FileSystemSource) Load(ctx context.Context) (*Result, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, s.root)
		}
		return nil, fmt.Errorf("stat %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, s.root)
	}

	byFormat := make(map[string][]string)
	var walkFailed []FailedDoc
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return s.skipUnreadable(path, d, err, &walkFailed)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if format, ok := DetectFormat(d.Name()); ok {
			byFormat[format] = append(byFormat[format], path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}

	result := &Result{Failed: walkFailed}
	for _, format := range formatOrder {
		paths := byFormat[format]
		sort.Strings(paths)

		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			doc, err := s.loadFile(path, format)
			if err != nil {
				s.logger.Warn("Failed to load document", "path", path, "error", err)
				result.Failed = append(result.Failed, FailedDoc{Path: path, Reason: err.Error()})
				continue
			}
			s.logger.Debug("Loaded document", "path", path, "format", format, "size", len(doc.Text))
			result.Documents = append(result.Documents, doc)
		}
	}

	return result, nil
}

// skipUnreadable records a path WalkDir could not read and keeps walking past it.
// Only a failure on the root itself aborts the load.
func (s *FileSystemSource) skipUnreadable(path string, d fs.DirEntry, err error, failed *[]FailedDoc) error {
	if path == s.root {
		return err
	}
	s.logger.Warn("Failed to read path", "path", path, "error", err)
	*failed = append(*failed, FailedDoc{Path: path, Reason: err.Error()})
	if d != nil && d.IsDir() {
		return fs.SkipDir
	}
	return nil
}

func (s *FileSystemSource) loadFile(path, format string) (document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, fmt.Errorf("read: %w", err)
	}

	text, err := Extract(format, data)
	if err != nil {
		return document.Document{}, err
	}

	return document.Document{
		Source: path,
		Text:   text,
		Origin: document.OriginFile,
		Format: format,
	}, nil
}
