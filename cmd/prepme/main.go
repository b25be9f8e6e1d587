// Package main provides the prepme CLI: index study notes and ask grounded questions.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/prepme-rag/internal/config"
	ghclient "github.com/mike-a-ellis/prepme-rag/internal/github"
	"github.com/mike-a-ellis/prepme-rag/internal/indexer"
	"github.com/mike-a-ellis/prepme-rag/internal/loader"
	"github.com/mike-a-ellis/prepme-rag/internal/session"
)

// flags holds command-line overrides; zero values mean "not set".
var flags struct {
	configPath   string
	verbose      bool
	dataDir      string
	backend      string
	storeDir     string
	topK         int
	chunkSize    int
	chunkOverlap int
	strictDedup  bool
	github       string
	yes          bool
}

var rootCmd = &cobra.Command{
	Use:   "prepme",
	Short: "Ask questions about your study notes",
	Long: `prepme indexes a folder of notes (txt, pdf, html, md) into a persistent vector
store and answers questions using only those notes, with citations.

Configuration is read from defaults, prepme.yaml (or --config), .env, the
environment and finally flags.

Environment variables:
  OPENROUTER_API_KEY  LLM API key (required for ask and chat)
  EMBED_API_KEY       Embedding API key (falls back to OPENAI_API_KEY)
  STORE_BACKEND       local or qdrant (default: local)
  DATA_DIR            Notes directory (default: ./data)
  GITHUB_TOKEN        GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index new chunks from the data directory or a GitHub repository",
	Long: `Loads every supported document, splits it into chunks and indexes the chunks
that are not stored yet. Running it twice over unchanged notes stores nothing new.

Edited files are not re-indexed: a chunk is identified by its source and
position only. Run "prepme reset" and ingest again to pick up edits.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the indexed notes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Index new notes, then start an interactive question loop",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the store backend, location and record count",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every indexed chunk",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file (default: prepme.yaml if present)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flags.dataDir, "data", "", "notes directory")
	pf.StringVar(&flags.backend, "backend", "", "store backend: local or qdrant")
	pf.StringVar(&flags.storeDir, "store-dir", "", "local store directory")
	pf.IntVar(&flags.topK, "top-k", 0, "number of chunks retrieved per question")
	pf.IntVar(&flags.chunkSize, "chunk-size", 0, "chunk size in characters")
	pf.IntVar(&flags.chunkOverlap, "chunk-overlap", -1, "chunk overlap in characters")
	pf.BoolVar(&flags.strictDedup, "strict-dedup", false, "fail ingestion when the store cannot report existing chunks")

	ingestCmd.Flags().StringVar(&flags.github, "github", "", "ingest from a GitHub repository: owner/repo[/path]")
	resetCmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(ingestCmd, askCmd, chatCmd, statusCmd, resetCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers flags over the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("data") {
		cfg.DataDir = flags.dataDir
	}
	if f.Changed("backend") {
		cfg.Store.Backend = strings.ToLower(flags.backend)
	}
	if f.Changed("store-dir") {
		cfg.Store.Dir = flags.storeDir
	}
	if f.Changed("top-k") {
		cfg.TopK = flags.topK
	}
	if f.Changed("chunk-size") {
		cfg.Chunking.Size = flags.chunkSize
	}
	if f.Changed("chunk-overlap") {
		cfg.Chunking.Overlap = flags.chunkOverlap
	}
	if f.Changed("strict-dedup") {
		cfg.StrictDedup = flags.strictDedup
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// openSession loads configuration and opens a session. requireLLM makes a missing LLM
// key fatal up front instead of at the first question.
func openSession(cmd *cobra.Command, requireLLM bool) (*session.Session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if requireLLM {
		if err := cfg.RequireGeneration(); err != nil {
			return nil, err
		}
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	return session.Open(cmd.Context(), cfg, logger)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	src := sess.DataSource()
	if flags.github != "" {
		owner, repo, basePath, err := ghclient.ParseRepoSpec(flags.github)
		if err != nil {
			return err
		}
		client, err := ghclient.NewClient(sess.Config().GitHubToken)
		if err != nil {
			return fmt.Errorf("Failed to create GitHub client: %w", err)
		}
		src = loader.NewGitHubSource(ghclient.NewFetcher(client, owner, repo, basePath), slog.Default())
	}

	fmt.Printf("Indexing %s...\n", src.Name())
	result, err := sess.Ingest(ctx, src)
	if err != nil {
		return fmt.Errorf("Indexing failed: %w", err)
	}

	printIndexResult(os.Stdout, result)
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func printIndexResult(out io.Writer, result *indexer.IndexResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Ingest complete!")
	fmt.Fprintf(out, "  Documents: %d\n", result.TotalDocs)
	fmt.Fprintf(out, "  Chunks: %d\n", result.TotalChunks)
	fmt.Fprintf(out, "  New: %d\n", result.Inserted)
	fmt.Fprintf(out, "  Skipped (already indexed): %d\n", result.SkippedDuplicate)
	fmt.Fprintf(out, "  Skipped (empty): %d\n", result.SkippedEmpty)
	if result.Malformed > 0 {
		fmt.Fprintf(out, "  Missing metadata (sentinel identifier): %d\n", result.Malformed)
	}
	if result.StoreTotal >= 0 {
		fmt.Fprintf(out, "  Store total: %d\n", result.StoreTotal)
	}

	if len(result.FailedDocs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	ans, err := sess.AskOnce(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	printAnswer(os.Stdout, ans.Text)
	printSources(os.Stdout, ans.Hits)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sess, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Println("Indexing new notes...")
	result, err := sess.Ingest(ctx, sess.DataSource())
	if err != nil {
		return fmt.Errorf("Indexing failed: %w", err)
	}
	fmt.Printf("Indexed %d new chunks (%d total).\n", result.Inserted, result.StoreTotal)

	return chatLoop(ctx, sess, os.Stdin, os.Stdout)
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	st, err := sess.Status(cmd.Context())
	if err != nil {
		return err
	}

	health := "connected"
	if err := sess.Health(cmd.Context()); err != nil {
		health = "unreachable: " + err.Error()
	}

	fmt.Printf("Backend:    %s\n", st.Backend)
	fmt.Printf("Location:   %s\n", st.Location)
	fmt.Printf("Collection: %s\n", st.Collection)
	fmt.Printf("Chunks:     %d\n", st.Records)
	fmt.Printf("Health:     %s\n", health)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if !flags.yes {
		ok, err := confirm(os.Stdin, os.Stdout, "Delete every indexed chunk?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	sess, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Reset(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Store reset.")
	return nil
}
