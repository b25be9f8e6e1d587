// Package session wires the pipeline together for one process: store, embedder,
// splitter, indexer, retriever, generator and the conversation state of a chat.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mike-a-ellis/prepme-rag/internal/answer"
	"github.com/mike-a-ellis/prepme-rag/internal/chunker"
	"github.com/mike-a-ellis/prepme-rag/internal/config"
	"github.com/mike-a-ellis/prepme-rag/internal/embedding"
	"github.com/mike-a-ellis/prepme-rag/internal/indexer"
	"github.com/mike-a-ellis/prepme-rag/internal/loader"
	"github.com/mike-a-ellis/prepme-rag/internal/prompt"
	"github.com/mike-a-ellis/prepme-rag/internal/retriever"
	"github.com/mike-a-ellis/prepme-rag/internal/storage"
)

// Embedder embeds both chunks and queries with the same model.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a reply to chat messages.
type Generator interface {
	Complete(ctx context.Context, messages []answer.Message) (string, error)
}

// Answer is a generated reply and the hits it was grounded on.
type Answer struct {
	Text string
	Hits []storage.Hit
}

// Status describes the store behind a session.
type Status struct {
	Backend    string
	Location   string
	Collection string
	Records    int
}

// Session owns every component for the lifetime of a process. Not safe for concurrent
// use: the chat loop and indexing share it sequentially.
type Session struct {
	cfg       *config.Config
	store     storage.VectorStore
	embedder  Embedder
	generator Generator
	pipeline  *indexer.Pipeline
	retriever *retriever.Retriever
	history   *answer.History
	lastHits  []storage.Hit
	logger    *slog.Logger
}

// Option overrides a component Open would otherwise build from configuration.
type Option func(*Session)

// WithStore uses store instead of opening the configured backend.
func WithStore(store storage.VectorStore) Option {
	return func(s *Session) { s.store = store }
}

// WithEmbedder uses e instead of the configured embedding API.
func WithEmbedder(e Embedder) Option {
	return func(s *Session) { s.embedder = e }
}

// WithGenerator uses g instead of the configured chat API.
func WithGenerator(g Generator) Option {
	return func(s *Session) { s.generator = g }
}

// Open validates cfg, connects to the store and builds the pipeline. The generator is
// optional at this point: without an LLM key, indexing and search work and Ask fails.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:     cfg,
		history: answer.NewHistory(cfg.History),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.embedder == nil {
		if err := cfg.RequireEmbedding(); err != nil {
			return nil, err
		}
		client, err := embedding.NewClient(cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create embedding client: %w", err)
		}
		s.embedder = embedding.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.BatchSize)
	}

	if s.generator == nil && cfg.LLM.APIKey != "" {
		gen, err := answer.NewGenerator(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Temperature)
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
		s.generator = gen
	}

	if s.store == nil {
		store, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	if err := s.store.EnsureCollection(ctx); err != nil {
		s.store.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	splitter, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		s.store.Close()
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	ix := indexer.NewIndexer(s.store, s.embedder, logger, indexer.WithStrictDedup(cfg.StrictDedup))
	s.pipeline = indexer.NewPipeline(splitter, ix, logger)
	s.retriever = retriever.New(s.store, s.embedder, logger)

	logger.Debug("Session opened", "store", s.store.Describe(), "collection", cfg.Store.Collection)
	return s, nil
}

func openStore(cfg *config.Config) (storage.VectorStore, error) {
	switch cfg.Store.Backend {
	case config.BackendQdrant:
		store, err := storage.NewQdrantStorage(cfg.Store.Qdrant.Host, cfg.Store.Qdrant.Port,
			cfg.Store.Collection, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewSQLiteStore(cfg.Store.Dir, cfg.Store.Collection, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		return store, nil
	}
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// DataSource returns the configured data directory as a document source.
func (s *Session) DataSource() loader.Source {
	return loader.NewFileSystemSource(s.cfg.DataDir, s.logger)
}

// Ingest indexes every chunk of src that is not stored yet.
func (s *Session) Ingest(ctx context.Context, src loader.Source) (*indexer.IndexResult, error) {
	return s.pipeline.Run(ctx, src)
}

// Search returns the k stored chunks closest to query. It does not touch chat state.
func (s *Session) Search(ctx context.Context, query string, k int) ([]storage.Hit, error) {
	return s.retriever.Query(ctx, query, k)
}

// Ask answers query from the configured top-k hits, replaying recent history, and records
// the exchange. The hits are kept for LastHits even when generation fails.
func (s *Session) Ask(ctx context.Context, query string) (*Answer, error) {
	ans, err := s.answer(ctx, query, s.history.Recent())
	if ans != nil {
		s.lastHits = ans.Hits
	}
	if err != nil {
		return nil, err
	}
	s.history.Append(query, ans.Text)
	return ans, nil
}

// AskOnce answers query without reading or writing conversation state.
func (s *Session) AskOnce(ctx context.Context, query string) (*Answer, error) {
	ans, err := s.answer(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return ans, nil
}

func (s *Session) answer(ctx context.Context, query string, history []answer.Message) (*Answer, error) {
	if s.generator == nil {
		return nil, s.cfg.RequireGeneration()
	}

	hits, err := s.retriever.Query(ctx, query, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	messages := prompt.BuildMessages(prompt.Assemble(hits), query, history)
	text, err := s.generator.Complete(ctx, messages)
	if err != nil {
		return &Answer{Hits: hits}, fmt.Errorf("generate answer: %w", err)
	}
	return &Answer{Text: text, Hits: hits}, nil
}

// LastHits returns the hits of the most recent Ask, or nil before the first one.
func (s *Session) LastHits() []storage.Hit {
	return s.lastHits
}

// History returns the conversation so far.
func (s *Session) History() *answer.History {
	return s.history
}

// Status reports the backend, its location and how many records it holds.
func (s *Session) Status(ctx context.Context) (*Status, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	return &Status{
		Backend:    s.cfg.Store.Backend,
		Location:   s.store.Describe(),
		Collection: s.cfg.Store.Collection,
		Records:    n,
	}, nil
}

// Health checks store connectivity.
func (s *Session) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// Reset drops every stored record and recreates the empty collection. Conversation
// state is cleared as well since its citations no longer resolve.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := s.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.history.Clear()
	s.lastHits = nil
	s.logger.Info("Store reset", "store", s.store.Describe())
	return nil
}

// Close releases the store.
func (s *Session) Close() error {
	return s.store.Close()
}
