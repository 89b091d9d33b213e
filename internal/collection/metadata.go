package collection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/plnlabs/vectord/internal/logging"
	"github.com/plnlabs/vectord/internal/qdrant"
)

// MetadataStore reads and writes the sentinel metadata record each
// collection carries at point id 0. The record's vector is a zero vector of
// the collection's declared dimension, which couples the metadata physically
// to the data it describes.
type MetadataStore struct {
	index  Index
	logger *logging.Logger
}

// NewMetadataStore creates a metadata store over the index.
func NewMetadataStore(index Index, logger *logging.Logger) *MetadataStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &MetadataStore{
		index:  index,
		logger: logger.Named("metadata"),
	}
}

// Read returns the collection's metadata, or (nil, nil) when the sentinel
// point is absent.
func (s *MetadataStore) Read(ctx context.Context, collection string) (*Metadata, error) {
	points, err := s.index.Retrieve(ctx, collection, []uint64{sentinelID})
	if err != nil {
		return nil, fmt.Errorf("retrieving metadata for %q: %w", collection, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return metadataFromPayload(collection, points[0].Payload), nil
}

// Write rewrites the sentinel point. The zero vector has to match the
// collection's physical dimension or the index rejects the upsert, so an
// existing sentinel's vector length wins over the declared dimension. The
// two differ after a resync, when the declaration moves ahead of the data.
func (s *MetadataStore) Write(ctx context.Context, collection string, meta *Metadata) error {
	if meta.Dimension <= 0 {
		return fmt.Errorf("metadata for %q has non-positive dimension %d", collection, meta.Dimension)
	}

	vectorLen := meta.Dimension
	if existing, err := s.index.Retrieve(ctx, collection, []uint64{sentinelID}); err == nil &&
		len(existing) > 0 && len(existing[0].Vector) > 0 {
		vectorLen = len(existing[0].Vector)
	}

	point := &qdrant.Point{
		ID:      sentinelID,
		Vector:  make([]float32, vectorLen),
		Payload: metadataToPayload(meta),
	}
	if err := s.index.Upsert(ctx, collection, []*qdrant.Point{point}); err != nil {
		return fmt.Errorf("writing metadata for %q: %w", collection, err)
	}
	return nil
}

// IncrementCount adds delta to the cached document counter. The counter is
// a best-effort cache: concurrent writers can race on it, and List repairs
// drift by rescanning.
func (s *MetadataStore) IncrementCount(ctx context.Context, collection string, delta int) error {
	meta, err := s.Read(ctx, collection)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, collection)
	}

	meta.DocumentCount += delta
	meta.UpdatedAt = time.Now().UTC()
	if err := s.Write(ctx, collection, meta); err != nil {
		return err
	}
	s.logger.Debug(ctx, "updated document counter",
		zap.String("collection", collection),
		zap.Int("delta", delta),
		zap.Int("count", meta.DocumentCount),
	)
	return nil
}

// Recalculate scans all non-sentinel points and overwrites the cached
// counter with the real chunk count. Used to repair drift after crashed
// writers.
func (s *MetadataStore) Recalculate(ctx context.Context, collection string) (int, error) {
	meta, err := s.Read(ctx, collection)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, collection)
	}

	points, err := s.index.Scroll(ctx, collection, scrollLimit)
	if err != nil {
		return 0, fmt.Errorf("scanning %q: %w", collection, err)
	}

	count := 0
	for _, p := range points {
		if p.ID != sentinelID {
			count++
		}
	}

	meta.DocumentCount = count
	meta.UpdatedAt = time.Now().UTC()
	if err := s.Write(ctx, collection, meta); err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "recalculated document counter",
		zap.String("collection", collection),
		zap.Int("count", count),
	)
	return count, nil
}

func metadataToPayload(m *Metadata) map[string]interface{} {
	return map[string]interface{}{
		payloadName:          m.Name,
		payloadModel:         m.EmbeddingModel,
		payloadDimension:     m.Dimension,
		payloadDescription:   m.Description,
		payloadDocumentCount: m.DocumentCount,
		payloadCreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
		payloadUpdatedAt:     m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func metadataFromPayload(collection string, p map[string]interface{}) *Metadata {
	m := &Metadata{
		Name:           payloadString(p, payloadName),
		EmbeddingModel: payloadString(p, payloadModel),
		Dimension:      payloadInt(p, payloadDimension),
		Description:    payloadString(p, payloadDescription),
		DocumentCount:  payloadInt(p, payloadDocumentCount),
		CreatedAt:      payloadTime(p, payloadCreatedAt),
		UpdatedAt:      payloadTime(p, payloadUpdatedAt),
	}
	if m.Name == "" {
		m.Name = collection
	}
	return m
}

func payloadString(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func payloadTime(p map[string]interface{}, key string) time.Time {
	s := payloadString(p, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
