// Package qdrant wraps the official Qdrant Go client behind the narrow
// surface vectord needs: collection lifecycle, numeric-id point upserts,
// similarity queries with id exclusion, and full-collection scrolls.
package qdrant

import (
	"context"
)

// Point is a vector point with a numeric id and an arbitrary payload.
// Id 0 is reserved by the collection layer for its metadata record.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a search result with its similarity score.
type ScoredPoint struct {
	Point
	Score float32
}

// Client is the interface to the Qdrant vector index.
type Client interface {
	// Collection operations
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)

	// Point operations
	Upsert(ctx context.Context, collection string, points []*Point) error
	Query(ctx context.Context, collection string, vector []float32, limit uint64, excludeIDs []uint64) ([]*ScoredPoint, error)
	Retrieve(ctx context.Context, collection string, ids []uint64) ([]*Point, error)
	Scroll(ctx context.Context, collection string, limit uint32) ([]*Point, error)

	// EnsureAlive probes the connection and re-dials if the probe fails.
	// Callers invoke it once per logical operation group.
	EnsureAlive(ctx context.Context) error

	// Close closes the client connection.
	Close() error
}
