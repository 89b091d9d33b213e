package collection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/plnlabs/vectord/internal/embeddings"
	"github.com/plnlabs/vectord/internal/qdrant"
)

type fakeCollection struct {
	dimension uint64
	points    map[uint64]*qdrant.Point
}

// fakeIndex is an in-memory stand-in for the vector index. It enforces the
// physical dimension on upserts the way the real index does.
type fakeIndex struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection

	failBatchUpsert bool            // every multi-point upsert fails
	failPointIDs    map[uint64]bool // single-point upserts for these ids fail
	aliveErr        error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		collections:  make(map[string]*fakeCollection),
		failPointIDs: make(map[uint64]bool),
	}
}

func (f *fakeIndex) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; ok {
		return fmt.Errorf("collection %q already exists", name)
	}
	f.collections[name] = &fakeCollection{
		dimension: vectorSize,
		points:    make(map[uint64]*qdrant.Point),
	}
	return nil
}

func (f *fakeIndex) DeleteCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		return fmt.Errorf("collection %q does not exist", name)
	}
	delete(f.collections, name)
	return nil
}

func (f *fakeIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeIndex) ListCollections(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []*qdrant.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.collections[collection]
	if !ok {
		return fmt.Errorf("collection %q does not exist", collection)
	}
	if f.failBatchUpsert && len(points) > 1 {
		return fmt.Errorf("batch upsert rejected")
	}
	for _, p := range points {
		if f.failPointIDs[p.ID] {
			return fmt.Errorf("upsert of point %d rejected", p.ID)
		}
		if uint64(len(p.Vector)) != c.dimension {
			return fmt.Errorf("vector length %d does not match collection dimension %d", len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection string, vector []float32, limit uint64, excludeIDs []uint64) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}

	excluded := make(map[uint64]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	var hits []*qdrant.ScoredPoint
	for _, p := range c.points {
		if excluded[p.ID] {
			continue
		}
		hits = append(hits, &qdrant.ScoredPoint{
			Point: *p,
			Score: cosine(vector, p.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeIndex) Retrieve(ctx context.Context, collection string, ids []uint64) ([]*qdrant.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}
	var result []*qdrant.Point
	for _, id := range ids {
		if p, ok := c.points[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (f *fakeIndex) Scroll(ctx context.Context, collection string, limit uint32) ([]*qdrant.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}
	var result []*qdrant.Point
	for _, p := range c.points {
		result = append(result, p)
		if uint32(len(result)) >= limit {
			break
		}
	}
	return result, nil
}

func (f *fakeIndex) EnsureAlive(ctx context.Context) error {
	return f.aliveErr
}

// point returns a stored point for white-box assertions.
func (f *fakeIndex) point(collection string, id uint64) *qdrant.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.collections[collection]; ok {
		return c.points[id]
	}
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// fakeEmbedder satisfies embeddings.Provider with deterministic vectors.
// Texts with a fixture entry get that vector; everything else gets a unit
// vector along the first axis.
type fakeEmbedder struct {
	dimension int
	fixtures  map[string][]float32
	err       error
}

func newFakeEmbedder(dimension int) *fakeEmbedder {
	return &fakeEmbedder{
		dimension: dimension,
		fixtures:  make(map[string][]float32),
	}
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	for key, v := range f.fixtures {
		if strings.Contains(text, key) {
			return v
		}
	}
	v := make([]float32, f.dimension)
	v[0] = 1
	return v
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = f.vectorFor(t)
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dimension }

type fakeEmbedders struct {
	providers map[string]*fakeEmbedder
}

func (f *fakeEmbedders) ProviderFor(modelID string) (embeddings.Provider, error) {
	p, ok := f.providers[modelID]
	if !ok {
		return nil, fmt.Errorf("no provider for model %q", modelID)
	}
	return p, nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string]bool
	err     error
}

func newFakeBlobs(keys ...string) *fakeBlobs {
	b := &fakeBlobs{objects: make(map[string]bool)}
	for _, k := range keys {
		b.objects[k] = true
	}
	return b
}

func (b *fakeBlobs) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	deleted := 0
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			delete(b.objects, key)
			deleted++
		}
	}
	return deleted, nil
}
