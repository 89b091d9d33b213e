package collection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/plnlabs/vectord/internal/embeddings"
	"github.com/plnlabs/vectord/internal/logging"
)

// Reconciler compares a collection's declared dimension against the live
// model registry. The stored declaration is a historical snapshot: model
// configs can change between deployments, so it is checked explicitly and
// never silently trusted.
type Reconciler struct {
	store    *MetadataStore
	registry *embeddings.Registry
	logger   *logging.Logger
}

// NewReconciler creates a reconciler over the metadata store and registry.
func NewReconciler(store *MetadataStore, registry *embeddings.Registry, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		store:    store,
		registry: registry,
		logger:   logger.Named("reconciler"),
	}
}

// CheckCompatibility reports whether the collection's declared dimension
// equals the registry's current dimension for the model. An empty modelID
// resolves from the stored metadata. Unknown models and non-positive
// dimensions fall back to the registry default instead of failing, so
// metadata corruption does not hard-fail unrelated operations.
func (r *Reconciler) CheckCompatibility(ctx context.Context, collection, modelID string) (*Compatibility, error) {
	meta, err := r.store.Read(ctx, collection)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, collection)
	}

	if modelID == "" {
		modelID = meta.EmbeddingModel
	}

	collectionDim := meta.Dimension
	if collectionDim <= 0 {
		collectionDim = embeddings.DefaultDimension
	}
	currentDim := r.registry.DimensionOrDefault(modelID)

	c := &Compatibility{
		Compatible:          collectionDim == currentDim,
		CollectionDimension: collectionDim,
		CurrentDimension:    currentDim,
	}
	if c.Compatible {
		c.Detail = fmt.Sprintf("collection and model %q both use %dD vectors", modelID, currentDim)
	} else {
		c.Detail = fmt.Sprintf("collection expects %dD but model %q currently generates %dD", collectionDim, modelID, currentDim)
		r.logger.Warn(ctx, "dimension mismatch",
			zap.String("collection", collection),
			zap.String("model", modelID),
			zap.Int("collection_dimension", collectionDim),
			zap.Int("current_dimension", currentDim),
		)
	}
	return c, nil
}

// Resync rewrites the collection's declared dimension to the registry's
// current value. This is a metadata correction, not a data migration:
// vectors embedded at the old dimension remain physically inconsistent
// until the collection is re-inserted.
func (r *Reconciler) Resync(ctx context.Context, collection string) (*ResyncResult, error) {
	meta, err := r.store.Read(ctx, collection)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, collection)
	}

	old := meta.Dimension
	current := r.registry.DimensionOrDefault(meta.EmbeddingModel)

	meta.Dimension = current
	meta.UpdatedAt = time.Now().UTC()
	if err := r.store.Write(ctx, collection, meta); err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "resynced declared dimension",
		zap.String("collection", collection),
		zap.Int("old_dimension", old),
		zap.Int("new_dimension", current),
	)
	return &ResyncResult{OldDimension: old, NewDimension: current}, nil
}
