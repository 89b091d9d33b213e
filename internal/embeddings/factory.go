package embeddings

import (
	"fmt"
	"sync"
	"time"

	"github.com/plnlabs/vectord/internal/logging"
	"github.com/plnlabs/vectord/internal/textsafety"
)

// Factory builds Provider instances from the registry, caching one service
// per model id. One instance per (provider, model) pair keeps the
// fixed-dimension guarantee: an instance is never asked for two lengths.
type Factory struct {
	registry *Registry
	guard    *textsafety.Guard
	logger   *logging.Logger
	timeout  time.Duration

	mu    sync.Mutex
	cache map[string]*Service
}

// NewFactory creates a provider factory over the model registry.
func NewFactory(registry *Registry, guard *textsafety.Guard, logger *logging.Logger, timeout time.Duration) *Factory {
	if guard == nil {
		guard = textsafety.NewGuard(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Factory{
		registry: registry,
		guard:    guard,
		logger:   logger,
		timeout:  timeout,
		cache:    make(map[string]*Service),
	}
}

// ProviderFor returns the provider instance for a model id.
func (f *Factory) ProviderFor(modelID string) (Provider, error) {
	if modelID == "" {
		modelID = f.registry.DefaultModelID()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if svc, ok := f.cache[modelID]; ok {
		return svc, nil
	}

	model, ok := f.registry.Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: model %q not in registry", ErrInvalidConfig, modelID)
	}

	svc, err := NewService(modelID, model, f.guard, f.logger, f.timeout)
	if err != nil {
		return nil, err
	}
	f.cache[modelID] = svc
	return svc, nil
}

// Registry exposes the live model registry backing this factory.
func (f *Factory) Registry() *Registry {
	return f.registry
}
