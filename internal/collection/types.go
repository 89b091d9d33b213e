// Package collection manages named vector collections: lifecycle, document
// insertion, similarity search, and the per-collection metadata record that
// pins each collection to one embedding model and dimension.
package collection

import (
	"context"
	"errors"
	"time"

	"github.com/plnlabs/vectord/internal/embeddings"
	"github.com/plnlabs/vectord/internal/qdrant"
)

var (
	// ErrUnknownModel indicates the requested embedding model id is not in
	// the registry. Fatal, no retry.
	ErrUnknownModel = errors.New("unknown embedding model")

	// ErrIncompatibleDimension indicates the collection's declared
	// dimension does not match the model's current dimension. Inserting
	// would corrupt the index, so this is a hard stop.
	ErrIncompatibleDimension = errors.New("incompatible vector dimension")

	// ErrNotFound indicates the collection or its metadata record is
	// absent.
	ErrNotFound = errors.New("collection not found")
)

// sentinelID is the reserved point id holding the collection's metadata
// record. It is excluded from every search and enumeration.
const sentinelID uint64 = 0

// contentMaxLen caps the raw text stored in a chunk payload.
const contentMaxLen = 2000

// scrollLimit bounds full-collection scans.
const scrollLimit uint32 = 10000

// Payload keys shared by the metadata record and chunk points.
const (
	payloadName          = "name"
	payloadModel         = "embedding_model"
	payloadDimension     = "vector_dimension"
	payloadDescription   = "description"
	payloadDocumentCount = "document_count"
	payloadCreatedAt     = "created_at"
	payloadUpdatedAt     = "updated_at"

	payloadChunkID    = "chunk_id"
	payloadContent    = "content"
	payloadChunkIndex = "chunk_index"
	payloadChunkSize  = "chunk_size"
	payloadFileName   = "file_name"
	payloadSource     = "source"
)

// Metadata is the per-collection record stored in the sentinel point.
type Metadata struct {
	Name           string
	EmbeddingModel string
	Dimension      int
	Description    string
	DocumentCount  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is one text fragment to insert.
type Chunk struct {
	Content    string
	ChunkIndex int
	FileName   string
	Source     string
}

// SearchResult is one similarity hit with its score as a 0 to 100
// percentage.
type SearchResult struct {
	ID         uint64
	Score      float32
	Similarity float64
	Content    string
	FileName   string
	ChunkIndex int
	Source     string
}

// CollectionSummary is a listing entry. DocumentCount and ChunkCount are
// recomputed by scanning, never taken from the cached metadata counter.
type CollectionSummary struct {
	Name           string
	EmbeddingModel string
	Dimension      int
	Description    string
	CreatedAt      time.Time
	DocumentCount  int
	ChunkCount     int
}

// ChunkRecord is one stored chunk in a document-level grouping.
type ChunkRecord struct {
	ID         uint64
	ChunkIndex int
	Content    string
	ChunkSize  int
}

// DocumentRecord regroups a source file's chunks, ordered by chunk index.
type DocumentRecord struct {
	FileName string
	Source   string
	Chunks   []ChunkRecord
}

// Compatibility is the result of a dimension check.
type Compatibility struct {
	Compatible          bool
	CollectionDimension int
	CurrentDimension    int
	Detail              string
}

// ResyncResult reports a declared-dimension correction.
type ResyncResult struct {
	OldDimension int
	NewDimension int
}

// Index is the vector index surface the collection layer depends on.
type Index interface {
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, collection string, points []*qdrant.Point) error
	Query(ctx context.Context, collection string, vector []float32, limit uint64, excludeIDs []uint64) ([]*qdrant.ScoredPoint, error)
	Retrieve(ctx context.Context, collection string, ids []uint64) ([]*qdrant.Point, error)
	Scroll(ctx context.Context, collection string, limit uint32) ([]*qdrant.Point, error)
	EnsureAlive(ctx context.Context) error
}

// Embedders resolves one embedding provider per model id.
type Embedders interface {
	ProviderFor(modelID string) (embeddings.Provider, error)
}

// Blobs is the object storage surface used for cascading delete.
type Blobs interface {
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}
