package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mike-a-ellis/prepme-rag/internal/document"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	collection  TEXT NOT NULL,
	id          TEXT NOT NULL,
	source      TEXT,
	chunk_index INTEGER,
	content     TEXT NOT NULL,
	vector      BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_source ON records(collection, source);
`

// SQLiteStore is a persistent local vector store in a single SQLite file.
// Search is exact: every vector in the collection is scored against the query.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	collection string
	dimension  int
}

// NewSQLiteStore opens (or creates) the store under dir.
func NewSQLiteStore(dir, collection string, dimension int) (*SQLiteStore, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, "vectors.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{
		db:         db,
		path:       dbPath,
		collection: collection,
		dimension:  dimension,
	}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Describe returns the database path and collection.
func (s *SQLiteStore) Describe() string {
	return fmt.Sprintf("local %s/%s", s.path, s.collection)
}

// Health pings the database.
func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) collectionDimension(ctx context.Context) (int, bool, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return dim, true, nil
}

// EnsureCollection registers the collection and its dimension. Reopening an existing
// collection with a different dimension is an error.
func (s *SQLiteStore) EnsureCollection(ctx context.Context) error {
	dim, ok, err := s.collectionDimension(ctx)
	if err != nil {
		return fmt.Errorf("reading collection: %w", err)
	}
	if ok {
		if dim != s.dimension {
			return fmt.Errorf("%w: collection %s has dimension %d, configured %d",
				ErrDimensionMismatch, s.collection, dim, s.dimension)
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimension) VALUES (?, ?)`, s.collection, s.dimension)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

// Reset removes the collection and all of its records.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, s.collection); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, s.collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return tx.Commit()
}

// Exists reads every identifier in the collection in one query and intersects it with ids.
func (s *SQLiteStore) Exists(ctx context.Context, ids []string) ExistenceResult {
	_, ok, err := s.collectionDimension(ctx)
	if err != nil {
		return unavailable(fmt.Errorf("%w: %v", ErrStoreUnreachable, err))
	}
	if !ok {
		return storeNew()
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records WHERE collection = ?`, s.collection)
	if err != nil {
		return unavailable(fmt.Errorf("%w: %v", ErrStoreUnreachable, err))
	}
	defer rows.Close()

	present := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return unavailable(fmt.Errorf("%w: %v", ErrStoreUnreachable, err))
		}
		if _, ok := wanted[id]; ok {
			present[id] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable(fmt.Errorf("%w: %v", ErrStoreUnreachable, err))
	}

	return known(present)
}

// Insert writes all records in one transaction. Existing identifiers are ignored,
// never overwritten.
func (s *SQLiteStore) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, s.dimension); err != nil {
		return err
	}
	if _, ok, err := s.collectionDimension(ctx); err != nil {
		return fmt.Errorf("reading collection: %w", err)
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.collection)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO records (collection, id, source, chunk_index, content, vector)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var source sql.NullString
		if r.Metadata.Source != nil {
			source = sql.NullString{String: *r.Metadata.Source, Valid: true}
		}
		var chunkIndex sql.NullInt64
		if r.Metadata.ChunkIndex != nil {
			chunkIndex = sql.NullInt64{Int64: int64(*r.Metadata.ChunkIndex), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			s.collection, r.ID, source, chunkIndex, r.Text, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("inserting %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	return nil
}

// Query scores every record by cosine distance and returns the k closest.
// Ties are broken by identifier so results are stable.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, chunk_index, content, vector
		FROM records WHERE collection = ?`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var (
			id, content string
			source      sql.NullString
			chunkIndex  sql.NullInt64
			blob        []byte
		)
		if err := rows.Scan(&id, &source, &chunkIndex, &content, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		var md document.Metadata
		if source.Valid {
			src := source.String
			md.Source = &src
		}
		if chunkIndex.Valid {
			idx := int(chunkIndex.Int64)
			md.ChunkIndex = &idx
		}

		hits = append(hits, Hit{
			ID:       id,
			Text:     content,
			Metadata: md,
			Distance: cosineDistance(vector, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of records in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
