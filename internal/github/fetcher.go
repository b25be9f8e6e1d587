// Package github fetches documents from a directory of a GitHub repository.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/go-github/v81/github"
)

// ErrInvalidRepoSpec is returned for a repository spec that is not owner/repo[/path].
var ErrInvalidRepoSpec = errors.New("invalid repository spec")

// FetchedDoc represents a file fetched from GitHub
type FetchedDoc struct {
	Path     string // Relative path within the base directory
	RepoPath string // Path from the repository root
	Content  []byte // Raw file bytes
	SHA      string // File's Git blob SHA
}

// Fetcher handles fetching documents from a GitHub repository directory
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
}

// NewFetcher creates a new document fetcher
func NewFetcher(client *Client, owner, repo, basePath string) *Fetcher {
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: strings.Trim(basePath, "/"),
	}
}

// ParseRepoSpec splits "owner/repo[/base/path]".
func ParseRepoSpec(spec string) (owner, repo, basePath string, err error) {
	parts := strings.SplitN(strings.Trim(spec, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidRepoSpec, spec)
	}
	if len(parts) == 3 {
		basePath = parts[2]
	}
	return parts[0], parts[1], basePath, nil
}

// Owner returns the repository owner.
func (f *Fetcher) Owner() string { return f.owner }

// Repo returns the repository name.
func (f *Fetcher) Repo() string { return f.repo }

func (f *Fetcher) String() string {
	return path.Join(f.owner, f.repo, f.basePath)
}

// ListDocs recursively lists files under the base directory whose name satisfies match.
// Paths are relative to the base directory and sorted.
func (f *Fetcher) ListDocs(ctx context.Context, match func(name string) bool) ([]string, error) {
	docs, err := f.listDocsRecursive(ctx, f.basePath, "", match)
	if err != nil {
		return nil, err
	}
	sort.Strings(docs)
	return docs, nil
}

// listDocsRecursive recursively traverses directories to find matching files
func (f *Fetcher) listDocsRecursive(ctx context.Context, fullPath, relativePath string, match func(string) bool) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		fullPath,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)

		switch *item.Type {
		case "file":
			if match(*item.Name) {
				docs = append(docs, itemRelPath)
			}

		case "dir":
			itemFullPath := path.Join(fullPath, *item.Name)
			subDocs, err := f.listDocsRecursive(ctx, itemFullPath, itemRelPath, match)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

// FetchDoc fetches the content of a file relative to the base directory
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		fullPath,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}

	if fileContent == nil || fileContent.Content == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := base64.StdEncoding.DecodeString(*fileContent.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	return &FetchedDoc{
		Path:     relativePath,
		RepoPath: fullPath,
		Content:  content,
		SHA:      fileContent.GetSHA(),
	}, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the base directory
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.owner,
		f.repo,
		&github.CommitsListOptions{
			Path: f.basePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}
