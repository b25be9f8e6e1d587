package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
		ok     bool
	}{
		{"notes.txt", FormatText, true},
		{"NOTES.TXT", FormatText, true},
		{"paper.pdf", FormatPDF, true},
		{"page.html", FormatHTML, true},
		{"page.htm", FormatHTML, true},
		{"readme.md", FormatMarkdown, true},
		{"readme.markdown", FormatMarkdown, true},
		{"image.png", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, ok := DetectFormat(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestFileSystemSource_LoadOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.md", "# Bee\n\nmarkdown body")
	writeFile(t, root, "sub/a.txt", "plain a")
	writeFile(t, root, "c.txt", "plain c")
	writeFile(t, root, "page.html", "<html><head><title>T</title></head><body><p>html body</p></body></html>")
	writeFile(t, root, "ignored.png", "binary")

	res, err := NewFileSystemSource(root, nil).Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Failed)
	require.Len(t, res.Documents, 4)

	var names []string
	for _, d := range res.Documents {
		rel, err := filepath.Rel(root, d.Source)
		require.NoError(t, err)
		names = append(names, filepath.ToSlash(rel))
		assert.Equal(t, document.OriginFile, d.Origin)
	}
	assert.Equal(t, []string{"c.txt", "sub/a.txt", "page.html", "b.md"}, names)
	assert.Equal(t, FormatText, res.Documents[0].Format)
	assert.Equal(t, "plain c", res.Documents[0].Text)
	assert.Contains(t, res.Documents[2].Text, "html body")
	assert.Contains(t, res.Documents[3].Text, "markdown body")
}

func TestFileSystemSource_MissingRoot(t *testing.T) {
	_, err := NewFileSystemSource(filepath.Join(t.TempDir(), "nope"), nil).Load(context.Background())
	assert.True(t, errors.Is(err, ErrRootNotFound))
}

func TestFileSystemSource_RootIsFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.txt", "x")
	_, err := NewFileSystemSource(p, nil).Load(context.Background())
	assert.True(t, errors.Is(err, ErrRootNotFound))
}

func TestFileSystemSource_EmptyRoot(t *testing.T) {
	res, err := NewFileSystemSource(t.TempDir(), nil).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestFileSystemSource_BrokenPDFIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "fine")
	writeFile(t, root, "broken.pdf", "this is not a pdf")

	res, err := NewFileSystemSource(root, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Path, "broken.pdf")
}

func TestFileSystemSource_UnreadableDirIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, root, "a.txt", "fine")
	writeFile(t, root, "locked/b.txt", "hidden")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	res, err := NewFileSystemSource(root, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, locked, res.Failed[0].Path)
}

func TestSkipUnreadable(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	file := writeFile(t, root, "a.txt", "x")

	src := NewFileSystemSource(root, nil)
	denied := fs.ErrPermission
	var failed []FailedDoc

	dirInfo, err := os.Stat(sub)
	require.NoError(t, err)
	assert.Equal(t, fs.SkipDir, src.skipUnreadable(sub, fs.FileInfoToDirEntry(dirInfo), denied, &failed))

	fileInfo, err := os.Stat(file)
	require.NoError(t, err)
	assert.NoError(t, src.skipUnreadable(file, fs.FileInfoToDirEntry(fileInfo), denied, &failed))

	require.Len(t, failed, 2)
	assert.Equal(t, sub, failed[0].Path)
	assert.Contains(t, failed[1].Reason, "permission denied")

	// the root itself still aborts the walk
	assert.ErrorIs(t, src.skipUnreadable(root, nil, denied, &failed), fs.ErrPermission)
	assert.Len(t, failed, 2)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := Extract("docx", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestExtractHTML(t *testing.T) {
	html := `<html><head><title>Week 1</title><style>p{color:red}</style></head>
<body><script>var x = 1;</script><h1>Intro</h1><p>First paragraph.</p><p>Second.</p></body></html>`

	text, err := extractHTML([]byte(html))
	require.NoError(t, err)
	assert.Contains(t, text, "Week 1")
	assert.Contains(t, text, "Intro")
	assert.Contains(t, text, "First paragraph.")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "paragraph.Second", "adjacent blocks must not merge")
}

func TestExtractMarkdown(t *testing.T) {
	md := "# Title\n\nSome *bold* text and a [link](http://example.com).\n\n```go\nfmt.Println(1)\n```\n"

	text := extractMarkdown([]byte(md))
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some bold text and a link.")
	assert.Contains(t, text, "fmt.Println(1)")
	assert.NotContains(t, text, "http://example.com")
	assert.NotContains(t, text, "#")
}

func TestContentStreamText(t *testing.T) {
	stream := "BT /F1 12 Tf 72 712 Td (Hello) Tj [(Wor) 10 (ld) -300 (again)] TJ ET\nBT (Esc\\(aped\\)) Tj ET"

	text := contentStreamText(stream)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World again")
	assert.Contains(t, text, "Esc(aped)")
}
