package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
	ghclient "github.com/mike-a-ellis/prepme-rag/internal/github"
)

// GitHubSource loads supported files from a directory of a GitHub repository.
// Sources are namespaced as "github.com/<owner>/<repo>/<path>".
type GitHubSource struct {
	fetcher *ghclient.Fetcher
	logger  *slog.Logger
}

// NewGitHubSource creates a source backed by fetcher.
func NewGitHubSource(fetcher *ghclient.Fetcher, logger *slog.Logger) *GitHubSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitHubSource{fetcher: fetcher, logger: logger}
}

// Name returns the repository path.
func (s *GitHubSource) Name() string {
	return s.fetcher.String()
}

// Load lists the repository directory and fetches every supported file, grouped by
// format in the same order as the filesystem source.
func (s *GitHubSource) Load(ctx context.Context) (*Result, error) {
	if sha, err := s.fetcher.GetLatestCommitSHA(ctx); err == nil {
		s.logger.Info("Loading from GitHub", "repo", s.fetcher.String(), "commit", sha)
	} else {
		s.logger.Warn("Could not resolve latest commit", "repo", s.fetcher.String(), "error", err)
	}

	paths, err := s.fetcher.ListDocs(ctx, func(name string) bool {
		_, ok := DetectFormat(name)
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootNotFound, err)
	}

	byFormat := make(map[string][]string)
	for _, p := range paths {
		format, _ := DetectFormat(p)
		byFormat[format] = append(byFormat[format], p)
	}

	result := &Result{}
	for _, format := range formatOrder {
		for _, p := range byFormat[format] {
			fetched, err := s.fetcher.FetchDoc(ctx, p)
			if err != nil {
				s.logger.Warn("Failed to fetch document", "path", p, "error", err)
				result.Failed = append(result.Failed, FailedDoc{Path: p, Reason: err.Error()})
				continue
			}

			text, err := Extract(format, fetched.Content)
			if err != nil {
				s.logger.Warn("Failed to extract document", "path", p, "error", err)
				result.Failed = append(result.Failed, FailedDoc{Path: p, Reason: err.Error()})
				continue
			}

			result.Documents = append(result.Documents, document.Document{
				Source: path.Join("github.com", s.fetcher.Owner(), s.fetcher.Repo(), fetched.RepoPath),
				Text:   text,
				Origin: document.OriginRemote,
				Format: format,
			})
		}
	}

	return result, nil
}
