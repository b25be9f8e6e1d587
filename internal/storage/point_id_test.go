package storage

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPointUUID(t *testing.T) {
	a := PointUUID("a.txt::chunk_0")

	assert.Equal(t, a, PointUUID("a.txt::chunk_0"))
	assert.NotEqual(t, a, PointUUID("a.txt::chunk_1"))

	parsed, err := uuid.Parse(a)
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestExistenceResult(t *testing.T) {
	res := known(map[string]struct{}{"x": {}})
	assert.True(t, res.Has("x"))
	assert.False(t, res.Has("y"))
	assert.Equal(t, "known", res.State.String())

	assert.Equal(t, "unavailable", unavailable(ErrStoreUnreachable).State.String())
	assert.False(t, storeNew().Has("x"))
}

func TestBuildPoints_OneRequestForWholeBatch(t *testing.T) {
	records := make([]Record, 250)
	for i := range records {
		records[i] = record("a.txt", i, fmt.Sprintf("text %d", i), 1, 0)
	}
	records = append(records, Record{ID: "unknown::chunk_-1", Vector: []float32{0, 1}, Text: "orphan"})

	points := buildPoints(records)
	assert.Len(t, points, len(records))

	ids := make(map[string]struct{}, len(points))
	for _, p := range points {
		ids[p.GetId().GetUuid()] = struct{}{}
	}
	assert.Len(t, ids, len(records))

	assert.Equal(t, PointUUID("a.txt::chunk_7"), points[7].GetId().GetUuid())
	assert.Equal(t, "a.txt", points[7].GetPayload()["source"].GetStringValue())
	assert.Equal(t, int64(7), points[7].GetPayload()["chunk_index"].GetIntegerValue())

	orphan := points[len(points)-1].GetPayload()
	assert.NotContains(t, orphan, "source")
	assert.NotContains(t, orphan, "chunk_index")
	assert.Equal(t, "orphan", orphan["content"].GetStringValue())
}
