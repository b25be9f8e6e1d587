package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mike-a-ellis/prepme-rag/internal/indexer"
	"github.com/mike-a-ellis/prepme-rag/internal/loader"
	"github.com/mike-a-ellis/prepme-rag/internal/session"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// chatSession is the part of session.Session the chat loop uses.
type chatSession interface {
	Ask(ctx context.Context, query string) (*session.Answer, error)
	LastHits() []storage.Hit
	Ingest(ctx context.Context, src loader.Source) (*indexer.IndexResult, error)
	DataSource() loader.Source
}

const chatHelp = `
PrepMe RAG ready.
Commands:
  :reindex  -> rescan data dir and index new chunks
  :sources  -> show sources for last answer
  exit      -> quit
`

// chatLoop reads questions line by line until exit, quit or end of input. A failed
// question is reported and the loop continues.
func chatLoop(ctx context.Context, sess chatSession, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, chatHelp+"\n")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case strings.EqualFold(query, "exit"), strings.EqualFold(query, "quit"):
			return nil
		case query == ":reindex":
			result, err := sess.Ingest(ctx, sess.DataSource())
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("Reindex failed: "+err.Error()))
				continue
			}
			fmt.Fprintf(out, "Indexed %d new chunks (%d total).\n", result.Inserted, result.StoreTotal)
			continue
		case query == ":sources":
			hits := sess.LastHits()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No retrieval yet.")
				continue
			}
			printSources(out, hits)
			continue
		}

		ans, err := sess.Ask(ctx, query)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}
		printAnswer(out, ans.Text)
	}
}

func printAnswer(out io.Writer, text string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("---- Answer ----"))
	fmt.Fprintln(out, text)
	fmt.Fprintln(out, headerStyle.Render("---------------"))
	fmt.Fprintln(out)
}

// printSources lists hits as "- <source> (chunk <i>) dist=<d>".
func printSources(out io.Writer, hits []storage.Hit) {
	for _, h := range hits {
		line := fmt.Sprintf("- %s (chunk %d) dist=%.4f",
			h.Metadata.SourceOrDefault(), h.Metadata.ChunkIndexOrDefault(), h.Distance)
		fmt.Fprintln(out, sourceStyle.Render(line))
	}
}

// confirm asks a yes/no question. Without a terminal on stdin there is nobody to ask,
// so it refuses and points at --yes.
func confirm(in *os.File, out io.Writer, question string) (bool, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return false, errors.New("refusing to reset without a terminal; pass --yes")
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
