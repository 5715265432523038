// Package fetch provides the collaborators that actually retrieve category
// payloads, and the decorators that give them timeouts, retries, circuit
// breaking, tracing and logging. Retrying is the collaborator's business:
// the cache store calls a FetchFunc exactly once per flight.
package fetch

import (
	"context"
	"sync"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/infrastructure/cache"
)

// Fetcher retrieves the payload of one key.
type Fetcher interface {
	Fetch(ctx context.Context, key record.Key) (any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key record.Key) (any, error)

func (f FetcherFunc) Fetch(ctx context.Context, key record.Key) (any, error) {
	return f(ctx, key)
}

// Decorator wraps a fetcher registered for category.
type Decorator func(category record.Category, next Fetcher) Fetcher

// Registry maps every category to its fetcher.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[record.Category]Fetcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[record.Category]Fetcher)}
}

// Register sets the fetcher of category, wrapped by decorators in order:
// the first decorator is the outermost.
func (r *Registry) Register(category record.Category, f Fetcher, decorators ...Decorator) {
	for i := len(decorators) - 1; i >= 0; i-- {
		f = decorators[i](category, f)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[category] = f
}

// RegisterAll registers f for every category.
func (r *Registry) RegisterAll(f Fetcher, decorators ...Decorator) {
	for _, c := range record.AllCategories() {
		r.Register(c, f, decorators...)
	}
}

// Lookup returns the fetcher of category.
func (r *Registry) Lookup(category record.Category) (Fetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fetchers[category]
	if !ok {
		return nil, errors.NotFound(errors.CodeFetcherNotFound, "no fetcher registered").
			WithResource(category.String()).
			Build()
	}
	return f, nil
}

// FetchFunc binds key to its category's fetcher. A missing fetcher yields
// a FetchFunc that fails, so the failure reaches the caller through the
// store like any rejected fetch.
func (r *Registry) FetchFunc(key record.Key) cache.FetchFunc {
	f, err := r.Lookup(key.Category)
	if err != nil {
		return func(context.Context) (any, error) { return nil, err }
	}
	return func(ctx context.Context) (any, error) {
		return f.Fetch(ctx, key)
	}
}
