// Package embeddings converts sanitized text into fixed-length vectors via
// remote embedding APIs, one provider instance per (provider, model) pair.
package embeddings

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultDimension is the fallback vector length used whenever a model's
// configured dimension is missing or invalid.
const DefaultDimension = 1536

// ModelConfig describes one embedding model available to collections.
type ModelConfig struct {
	// Name is a human-readable label.
	Name string

	// Provider identifies the upstream API family: "openai", "gemini"
	// (OpenAI-compatible endpoints), or "tei".
	Provider string

	// Model is the upstream model identifier sent on the wire.
	Model string

	// Dimension is the declared vector length. It is mutable at runtime
	// through SetDimension and is the single source of truth the
	// dimension reconciler checks collections against.
	Dimension int

	// BaseURL is the embedding endpoint base URL.
	BaseURL string

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
}

// Registry is the live, process-wide view of configured embedding models.
// Model entries are read-only at runtime except for Dimension.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]ModelConfig
	defaultID string
}

// NewRegistry builds a registry from model descriptors.
func NewRegistry(defaultID string, models map[string]ModelConfig) (*Registry, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("at least one embedding model is required")
	}
	if _, ok := models[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q not in registry", defaultID)
	}

	copied := make(map[string]ModelConfig, len(models))
	for id, m := range models {
		copied[id] = m
	}
	return &Registry{models: copied, defaultID: defaultID}, nil
}

// Lookup returns the descriptor for a model id.
func (r *Registry) Lookup(id string) (ModelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// DimensionOrDefault returns the configured dimension for a model id,
// falling back to DefaultDimension when the model is unknown or its
// dimension is non-positive. Metadata corruption must not hard-fail
// unrelated operations.
func (r *Registry) DimensionOrDefault(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[id]
	if !ok {
		m, ok = r.models[r.defaultID]
	}
	if !ok || m.Dimension <= 0 {
		return DefaultDimension
	}
	return m.Dimension
}

// SetDimension updates a model's declared dimension, e.g. after a provider
// ships a higher-dimensional embedding version.
func (r *Registry) SetDimension(id string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d for model %q", dimension, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return fmt.Errorf("unknown model %q", id)
	}
	m.Dimension = dimension
	r.models[id] = m
	return nil
}

// DefaultModelID returns the id used when a caller does not name a model.
func (r *Registry) DefaultModelID() string {
	return r.defaultID
}

// IDs returns all registered model ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
