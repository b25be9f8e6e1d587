package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extract returns the plain text of a document in the given format.
func Extract(format string, data []byte) (string, error) {
	switch format {
	case FormatText:
		return string(data), nil
	case FormatMarkdown:
		return extractMarkdown(data), nil
	case FormatHTML:
		return extractHTML(data)
	case FormatPDF:
		return extractPDF(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// extractMarkdown walks the goldmark AST and keeps text and code, dropping markup.
func extractMarkdown(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteString("\n")
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return buf.String()
}

// extractHTML returns the title and visible body text, without scripts and styles.
func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	// Block elements become line breaks so words from adjacent blocks do not merge
	body.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	if t := strings.TrimSpace(body.Text()); t != "" {
		parts = append(parts, t)
	}

	return strings.Join(parts, "\n\n"), nil
}

var (
	pagePattern      = regexp.MustCompile(`page_(\d+)`)
	textShowPattern  = regexp.MustCompile(`(?s)\((?:\\.|[^\\)])*\)\s*(?:Tj|'|")|\[(?:\\.|[^\]\\])*\]\s*TJ|\bET\b`)
	literalPattern   = regexp.MustCompile(`(?s)\((?:\\.|[^\\)])*\)|-?\d+(?:\.\d+)?`)
	wordGapThreshold = -200.0
)

// extractPDF dumps page content streams with pdfcpu and reads the strings shown by
// text operators. Layout is approximate; whitespace is normalized later anyway.
func extractPDF(data []byte) (string, error) {
	tmpDir, err := os.MkdirTemp("", "prepme-pdf-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inFile := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	outDir := filepath.Join(tmpDir, "content")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return "", fmt.Errorf("create content dir: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extract pdf content: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read content dir: %w", err)
	}

	type page struct {
		num  int
		name string
	}
	var pages []page
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		num := 0
		if m := pagePattern.FindStringSubmatch(e.Name()); m != nil {
			num, _ = strconv.Atoi(m[1])
		}
		pages = append(pages, page{num: num, name: e.Name()})
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].num != pages[j].num {
			return pages[i].num < pages[j].num
		}
		return pages[i].name < pages[j].name
	})

	var out strings.Builder
	for _, p := range pages {
		stream, err := os.ReadFile(filepath.Join(outDir, p.name))
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", p.num, err)
		}
		out.WriteString(contentStreamText(string(stream)))
		out.WriteString("\n\n")
	}

	return out.String(), nil
}

// contentStreamText collects the strings painted by Tj, TJ, ' and " operators.
func contentStreamText(stream string) string {
	var b strings.Builder
	for _, op := range textShowPattern.FindAllString(stream, -1) {
		if op == "ET" {
			b.WriteString("\n")
			continue
		}
		for _, tok := range literalPattern.FindAllString(op, -1) {
			if strings.HasPrefix(tok, "(") {
				b.WriteString(unescapePDFString(tok[1 : len(tok)-1]))
				continue
			}
			// Large negative kerning inside TJ arrays separates words
			if f, err := strconv.ParseFloat(tok, 64); err == nil && f <= wordGapThreshold {
				b.WriteString(" ")
			}
		}
		b.WriteString(" ")
	}
	return b.String()
}

func unescapePDFString(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '(', ')', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
