package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mike-a-ellis/prepme-rag/internal/document"
)

// pointNamespace seeds the name-based UUIDs Qdrant requires as point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/mike-a-ellis/prepme-rag/chunk"))

// PointUUID maps a chunk identifier onto a deterministic Qdrant point ID.
func PointUUID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client     *qdrant.Client
	host       string
	port       int
	collection string
	dimension  int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(host string, port int, collection string, dimension int) (*QdrantStorage, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}

	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		host:       host,
		port:       port,
		collection: collection,
		dimension:  dimension,
	}

	if err := storage.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return storage, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(newBackoff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// Describe returns the Qdrant endpoint and collection.
func (s *QdrantStorage) Describe() string {
	return fmt.Sprintf("qdrant %s:%d/%s", s.host, s.port, s.collection)
}

func (s *QdrantStorage) collectionExists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection with cosine distance if it does not exist.
// Idempotent - safe to call multiple times.
func (s *QdrantStorage) EnsureCollection(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Source is the only filterable field
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "source",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field source: %w", err)
	}

	return nil
}

// Reset deletes the collection and recreates it empty.
func (s *QdrantStorage) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Exists looks up all ids with a single Get request.
func (s *QdrantStorage) Exists(ctx context.Context, ids []string) ExistenceResult {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return unavailable(fmt.Errorf("%w: %v", ErrStoreUnreachable, err))
	}
	if !exists {
		return storeNew()
	}
	if len(ids) == 0 {
		return known(map[string]struct{}{})
	}

	byPoint := make(map[string]string, len(ids))
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		p := PointUUID(id)
		if _, dup := byPoint[p]; dup {
			continue
		}
		byPoint[p] = id
		pointIDs = append(pointIDs, qdrant.NewIDUUID(p))
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return unavailable(fmt.Errorf("%w: get points: %v", ErrStoreUnreachable, err))
	}

	present := make(map[string]struct{}, len(points))
	for _, point := range points {
		if id, ok := byPoint[point.Id.GetUuid()]; ok {
			present[id] = struct{}{}
		}
	}
	return known(present)
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
// The request waits for the write to be applied.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx))
}

// Insert stores records with a single upsert request, so a failed call leaves none of
// them written. Qdrant upserts by point ID: a record whose ID is already present is
// rewritten with identical identity; callers filter through Exists first.
func (s *QdrantStorage) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, s.dimension); err != nil {
		return err
	}

	if err := s.upsertWithRetry(ctx, buildPoints(records)); err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(records), err)
	}
	return nil
}

func buildPoints(records []Record) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointUUID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(recordPayload(r)),
		}
	}
	return points
}

func recordPayload(r Record) map[string]any {
	payload := map[string]any{
		"chunk_id": r.ID,
		"content":  r.Text,
	}
	// Absent metadata stays absent so it reads back as missing
	if r.Metadata.Source != nil {
		payload["source"] = *r.Metadata.Source
	}
	if r.Metadata.ChunkIndex != nil {
		payload["chunk_index"] = *r.Metadata.ChunkIndex
	}
	return payload
}

func payloadMetadata(payload map[string]*qdrant.Value) document.Metadata {
	var md document.Metadata
	if v, ok := payload["source"]; ok {
		src := v.GetStringValue()
		md.Source = &src
	}
	if v, ok := payload["chunk_index"]; ok {
		idx := int(v.GetIntegerValue())
		md.ChunkIndex = &idx
	}
	return md
}

// Query performs cosine similarity search. Qdrant returns similarity scores, which are
// converted to distance = 1 - score.
func (s *QdrantStorage) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		hits = append(hits, Hit{
			ID:       payload["chunk_id"].GetStringValue(),
			Text:     payload["content"].GetStringValue(),
			Metadata: payloadMetadata(payload),
			Distance: clampDistance(1 - float64(result.Score)),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStorage) Count(ctx context.Context) (int, error) {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}
