package collection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/plnlabs/vectord/internal/embeddings"
	"github.com/plnlabs/vectord/internal/logging"
	"github.com/plnlabs/vectord/internal/qdrant"
	"github.com/plnlabs/vectord/internal/textsafety"
)

// Manager owns collection lifecycle, document insertion, and similarity
// search. Each collection moves absent -> created -> populated -> deleted;
// no transition skips created, and delete is terminal.
type Manager struct {
	index      Index
	store      *MetadataStore
	reconciler *Reconciler
	registry   *embeddings.Registry
	embedders  Embedders
	blobs      Blobs
	guard      *textsafety.Guard
	logger     *logging.Logger

	now func() time.Time
}

// NewManager composes a manager. blobs may be nil when no object storage is
// configured; cascade delete then becomes a no-op.
func NewManager(index Index, registry *embeddings.Registry, embedders Embedders, blobs Blobs, guard *textsafety.Guard, logger *logging.Logger) *Manager {
	if guard == nil {
		guard = textsafety.NewGuard(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	store := NewMetadataStore(index, logger)
	return &Manager{
		index:      index,
		store:      store,
		reconciler: NewReconciler(store, registry, logger),
		registry:   registry,
		embedders:  embedders,
		blobs:      blobs,
		guard:      guard,
		logger:     logger.Named("collection"),
		now:        time.Now,
	}
}

// Metadata exposes the underlying metadata store.
func (m *Manager) Metadata() *MetadataStore { return m.store }

// Reconciler exposes the dimension reconciler.
func (m *Manager) Reconciler() *Reconciler { return m.reconciler }

// Create allocates a collection pinned to one embedding model and writes
// its initial metadata record. An empty modelID takes the registry default.
func (m *Manager) Create(ctx context.Context, name, modelID, description string) (*Metadata, error) {
	if err := m.index.EnsureAlive(ctx); err != nil {
		return nil, err
	}

	if modelID == "" {
		modelID = m.registry.DefaultModelID()
	}
	model, ok := m.registry.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	dimension := model.Dimension
	if dimension <= 0 {
		dimension = embeddings.DefaultDimension
	}

	if err := m.index.CreateCollection(ctx, name, uint64(dimension)); err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", name, err)
	}

	nowT := m.now().UTC()
	meta := &Metadata{
		Name:           name,
		EmbeddingModel: modelID,
		Dimension:      dimension,
		Description:    description,
		DocumentCount:  0,
		CreatedAt:      nowT,
		UpdatedAt:      nowT,
	}
	if err := m.store.Write(ctx, name, meta); err != nil {
		// Remove the half-created collection so a retry starts clean. The
		// original error is what the caller needs to see.
		if delErr := m.index.DeleteCollection(ctx, name); delErr != nil {
			m.logger.Warn(ctx, "failed to clean up half-created collection",
				zap.String("collection", name),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	m.logger.Info(ctx, "created collection",
		zap.String("collection", name),
		zap.String("model", modelID),
		zap.Int("dimension", dimension),
	)
	return meta, nil
}

// Insert embeds and upserts a batch of chunks. The whole batch shares one
// base timestamp in milliseconds; each chunk's point id is base plus its
// ordinal starting at 1, so concurrent batches issued at different times
// cannot collide and no id is ever 0. Insert is at-least-once, not atomic:
// a failure mid-way leaves earlier points committed.
func (m *Manager) Insert(ctx context.Context, name string, chunks []Chunk, modelID string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := m.index.EnsureAlive(ctx); err != nil {
		return 0, err
	}

	meta, err := m.store.Read(ctx, name)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if modelID == "" {
		modelID = meta.EmbeddingModel
	}

	compat, err := m.reconciler.CheckCompatibility(ctx, name, modelID)
	if err != nil {
		return 0, err
	}
	if !compat.Compatible {
		return 0, fmt.Errorf("%w: %s", ErrIncompatibleDimension, compat.Detail)
	}

	provider, err := m.embedders.ProviderFor(modelID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknownModel, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = m.guard.Sanitize(c.Content)
	}

	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	base := m.now().UnixMilli()
	createdAt := m.now().UTC().Format(time.RFC3339)

	points := make([]*qdrant.Point, len(chunks))
	for i, c := range chunks {
		id := uint64(base) + uint64(i) + 1
		content := truncateRunes(texts[i], contentMaxLen)
		points[i] = &qdrant.Point{
			ID:     id,
			Vector: vectors[i],
			Payload: map[string]interface{}{
				payloadChunkID:    fmt.Sprintf("%s_chunk_%d", name, id),
				payloadContent:    content,
				payloadChunkIndex: c.ChunkIndex,
				payloadChunkSize:  len(texts[i]),
				payloadFileName:   c.FileName,
				payloadSource:     c.Source,
				payloadCreatedAt:  createdAt,
			},
		}
	}

	inserted, err := m.upsertWithRetry(ctx, name, points)
	if err != nil {
		return inserted, err
	}

	// Counter update is best effort; List repairs drift by rescanning.
	if err := m.store.IncrementCount(ctx, name, inserted); err != nil {
		m.logger.Warn(ctx, "failed to update document counter",
			zap.String("collection", name),
			zap.Error(err),
		)
	}

	m.logger.Info(ctx, "inserted chunks",
		zap.String("collection", name),
		zap.Int("count", inserted),
	)
	return inserted, nil
}

// upsertWithRetry tries the batch once, then point-by-point so transient
// faults commit as much of the batch as possible before the error surfaces.
func (m *Manager) upsertWithRetry(ctx context.Context, name string, points []*qdrant.Point) (int, error) {
	if err := m.index.Upsert(ctx, name, points); err == nil {
		return len(points), nil
	} else {
		m.logger.Warn(ctx, "batch upsert failed, retrying point by point",
			zap.String("collection", name),
			zap.Int("points", len(points)),
			zap.Error(err),
		)
	}

	inserted := 0
	for _, p := range points {
		if err := m.index.Upsert(ctx, name, []*qdrant.Point{p}); err != nil {
			return inserted, fmt.Errorf("upserting point %d after %d committed: %w", p.ID, inserted, err)
		}
		inserted++
	}
	return inserted, nil
}

// Search embeds the query with the collection's model and returns hits at
// or above the threshold, which is given on a 0 to 1 scale and compared
// against the score as a percentage. Raising the threshold never increases
// the result count.
func (m *Manager) Search(ctx context.Context, name, query string, topK uint64, threshold float64) ([]SearchResult, error) {
	if err := m.index.EnsureAlive(ctx); err != nil {
		return nil, err
	}

	meta, err := m.store.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	provider, err := m.embedders.ProviderFor(meta.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownModel, err)
	}

	vector, err := provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := m.index.Query(ctx, name, vector, topK, []uint64{sentinelID})
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", name, err)
	}

	minSimilarity := threshold * 100
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		similarity := float64(hit.Score) * 100
		if similarity < minSimilarity {
			continue
		}
		results = append(results, SearchResult{
			ID:         hit.ID,
			Score:      hit.Score,
			Similarity: similarity,
			Content:    payloadString(hit.Payload, payloadContent),
			FileName:   payloadString(hit.Payload, payloadFileName),
			ChunkIndex: payloadInt(hit.Payload, payloadChunkIndex),
			Source:     payloadString(hit.Payload, payloadSource),
		})
	}

	m.logger.Debug(ctx, "search completed",
		zap.String("collection", name),
		zap.Int("hits", len(hits)),
		zap.Int("returned", len(results)),
		zap.Float64("min_similarity", minSimilarity),
	)
	return results, nil
}

// List enumerates all collections with real document and chunk counts
// recomputed by scanning. The cached counter is untrusted for display
// because writers can crash between insert and counter update.
func (m *Manager) List(ctx context.Context) ([]CollectionSummary, error) {
	if err := m.index.EnsureAlive(ctx); err != nil {
		return nil, err
	}

	names, err := m.index.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	sort.Strings(names)

	summaries := make([]CollectionSummary, 0, len(names))
	for _, name := range names {
		summary := CollectionSummary{Name: name, EmbeddingModel: "unknown"}

		meta, err := m.store.Read(ctx, name)
		if err != nil {
			m.logger.Warn(ctx, "failed to read metadata",
				zap.String("collection", name),
				zap.Error(err),
			)
		} else if meta != nil {
			summary.EmbeddingModel = meta.EmbeddingModel
			summary.Dimension = meta.Dimension
			summary.Description = meta.Description
			summary.CreatedAt = meta.CreatedAt
		}

		docs, chunksN, err := m.realCounts(ctx, name)
		if err != nil {
			m.logger.Warn(ctx, "failed to count documents",
				zap.String("collection", name),
				zap.Error(err),
			)
		}
		summary.DocumentCount = docs
		summary.ChunkCount = chunksN

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// realCounts scans the collection and returns the number of distinct source
// files and the total number of chunks, excluding the sentinel.
func (m *Manager) realCounts(ctx context.Context, name string) (int, int, error) {
	points, err := m.index.Scroll(ctx, name, scrollLimit)
	if err != nil {
		return 0, 0, err
	}

	files := make(map[string]struct{})
	chunksN := 0
	for _, p := range points {
		if p.ID == sentinelID {
			continue
		}
		chunksN++
		fileName := payloadString(p.Payload, payloadFileName)
		if fileName == "" {
			fileName = fmt.Sprintf("doc_%d", p.ID)
		}
		files[fileName] = struct{}{}
	}
	return len(files), chunksN, nil
}

// ListDocuments regroups the collection's chunks into document-level
// records keyed by source file name, each with its chunks ordered by chunk
// index. The index stores chunks, not documents, so this reconstruction is
// the only document view that exists.
func (m *Manager) ListDocuments(ctx context.Context, name string) ([]DocumentRecord, error) {
	if err := m.index.EnsureAlive(ctx); err != nil {
		return nil, err
	}

	exists, err := m.index.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	points, err := m.index.Scroll(ctx, name, scrollLimit)
	if err != nil {
		return nil, fmt.Errorf("scanning %q: %w", name, err)
	}

	byFile := make(map[string]*DocumentRecord)
	for _, p := range points {
		if p.ID == sentinelID {
			continue
		}
		fileName := payloadString(p.Payload, payloadFileName)
		if fileName == "" {
			fileName = fmt.Sprintf("doc_%d", p.ID)
		}

		rec, ok := byFile[fileName]
		if !ok {
			rec = &DocumentRecord{
				FileName: fileName,
				Source:   payloadString(p.Payload, payloadSource),
			}
			byFile[fileName] = rec
		}
		content := payloadString(p.Payload, payloadContent)
		rec.Chunks = append(rec.Chunks, ChunkRecord{
			ID:         p.ID,
			ChunkIndex: payloadInt(p.Payload, payloadChunkIndex),
			Content:    content,
			ChunkSize:  payloadInt(p.Payload, payloadChunkSize),
		})
	}

	documents := make([]DocumentRecord, 0, len(byFile))
	for _, rec := range byFile {
		sort.Slice(rec.Chunks, func(i, j int) bool {
			return rec.Chunks[i].ChunkIndex < rec.Chunks[j].ChunkIndex
		})
		documents = append(documents, *rec)
	}
	sort.Slice(documents, func(i, j int) bool {
		return documents[i].FileName < documents[j].FileName
	})
	return documents, nil
}

// Delete removes the index collection, then best-effort removes the
// collection's blobs. The index deletion is authoritative; a blob cleanup
// failure is logged and swallowed, never rolled back.
func (m *Manager) Delete(ctx context.Context, name string) (int, error) {
	if err := m.index.EnsureAlive(ctx); err != nil {
		return 0, err
	}

	exists, err := m.index.CollectionExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := m.index.DeleteCollection(ctx, name); err != nil {
		return 0, fmt.Errorf("deleting collection %q: %w", name, err)
	}

	deletedBlobs := 0
	if m.blobs != nil {
		deletedBlobs, err = m.blobs.DeleteByPrefix(ctx, name+"/")
		if err != nil {
			m.logger.Warn(ctx, "blob cleanup failed",
				zap.String("collection", name),
				zap.Error(err),
			)
		}
	}

	m.logger.Info(ctx, "deleted collection",
		zap.String("collection", name),
		zap.Int("deleted_blobs", deletedBlobs),
	)
	return deletedBlobs, nil
}

// GetCollectionInfo returns the collection's metadata record without
// rescanning the collection.
func (m *Manager) GetCollectionInfo(ctx context.Context, name string) (*Metadata, error) {
	if err := m.index.EnsureAlive(ctx); err != nil {
		return nil, err
	}

	meta, err := m.store.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return meta, nil
}

// CheckCompatibility delegates to the reconciler.
func (m *Manager) CheckCompatibility(ctx context.Context, name, modelID string) (*Compatibility, error) {
	return m.reconciler.CheckCompatibility(ctx, name, modelID)
}

// Resync delegates to the reconciler.
func (m *Manager) Resync(ctx context.Context, name string) (*ResyncResult, error) {
	return m.reconciler.Resync(ctx, name)
}

// Recount delegates to the metadata store's drift repair.
func (m *Manager) Recount(ctx context.Context, name string) (int, error) {
	return m.store.Recalculate(ctx, name)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
