package collection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plnlabs/vectord/internal/qdrant"
)

func newTestStore(t *testing.T, dimension uint64) (*MetadataStore, *fakeIndex) {
	t.Helper()
	index := newFakeIndex()
	require.NoError(t, index.CreateCollection(context.Background(), "docs", dimension))
	return NewMetadataStore(index, nil), index
}

func testMetadata() *Metadata {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	return &Metadata{
		Name:           "docs",
		EmbeddingModel: "alpha",
		Dimension:      4,
		Description:    "test collection",
		DocumentCount:  7,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMetadataStore_ReadAbsent(t *testing.T) {
	store, _ := newTestStore(t, 4)

	meta, err := store.Read(context.Background(), "docs")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestMetadataStore_WriteRead(t *testing.T) {
	store, index := newTestStore(t, 4)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "docs", testMetadata()))

	got, err := store.Read(ctx, "docs")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "docs", got.Name)
	assert.Equal(t, "alpha", got.EmbeddingModel)
	assert.Equal(t, 4, got.Dimension)
	assert.Equal(t, "test collection", got.Description)
	assert.Equal(t, 7, got.DocumentCount)
	assert.Equal(t, testMetadata().CreatedAt, got.CreatedAt)

	sentinel := index.point("docs", 0)
	require.NotNil(t, sentinel)
	assert.Len(t, sentinel.Vector, 4)
}

func TestMetadataStore_Write_RejectsNonPositiveDimension(t *testing.T) {
	store, _ := newTestStore(t, 4)

	meta := testMetadata()
	meta.Dimension = 0
	require.Error(t, store.Write(context.Background(), "docs", meta))
}

func TestMetadataStore_Write_KeepsPhysicalVectorLength(t *testing.T) {
	store, index := newTestStore(t, 4)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "docs", testMetadata()))

	// Declared dimension moves ahead of the physical data. The sentinel's
	// vector must keep the physical length or the index would reject it.
	meta := testMetadata()
	meta.Dimension = 8
	require.NoError(t, store.Write(ctx, "docs", meta))

	sentinel := index.point("docs", 0)
	require.NotNil(t, sentinel)
	assert.Len(t, sentinel.Vector, 4)

	got, err := store.Read(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Dimension)
}

func TestMetadataStore_IncrementCount(t *testing.T) {
	store, _ := newTestStore(t, 4)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "docs", testMetadata()))
	require.NoError(t, store.IncrementCount(ctx, "docs", 3))

	got, err := store.Read(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 10, got.DocumentCount)
}

func TestMetadataStore_IncrementCount_NoMetadata(t *testing.T) {
	store, _ := newTestStore(t, 4)

	err := store.IncrementCount(context.Background(), "docs", 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMetadataStore_Recalculate(t *testing.T) {
	store, index := newTestStore(t, 4)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "docs", testMetadata()))

	for id := uint64(101); id <= 103; id++ {
		require.NoError(t, index.Upsert(ctx, "docs", []*qdrant.Point{{
			ID:     id,
			Vector: []float32{1, 0, 0, 0},
			Payload: map[string]interface{}{
				payloadFileName: "f.txt",
			},
		}}))
	}

	count, err := store.Recalculate(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := store.Read(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 3, got.DocumentCount)
}
