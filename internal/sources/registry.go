package sources

import (
	"sync"

	"github.com/helixir/literature-aggregation-service/internal/domain"
)

// Registry holds the configured source adapters. It provides thread-safe
// registration and retrieval; the concurrent fan-out over registered sources
// lives in the aggregator.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]SourceAdapter
}

// NewRegistry creates a new source registry with an empty source map.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]SourceAdapter),
	}
}

// Register adds a source to the registry.
// If a source with the same type already exists, it will be replaced.
// This method is thread-safe.
func (r *Registry) Register(source SourceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
// This method is thread-safe.
func (r *Registry) Get(sourceType domain.SourceType) SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns all registered sources.
// The returned slice is a snapshot and is safe to iterate even if
// sources are added or removed concurrently.
func (r *Registry) AllSources() []SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]SourceAdapter, 0, len(r.sources))
	for _, source := range r.sources {
		sources = append(sources, source)
	}
	return sources
}

// EnabledSources returns only sources whose IsEnabled() method returns true.
// The returned slice is a snapshot.
func (r *Registry) EnabledSources() []SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]SourceAdapter, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// Subset returns the enabled sources matching the given types, skipping
// unknown or disabled ones. An empty type list selects all enabled sources.
func (r *Registry) Subset(sourceTypes []domain.SourceType) []SourceAdapter {
	if len(sourceTypes) == 0 {
		return r.EnabledSources()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]SourceAdapter, 0, len(sourceTypes))
	for _, st := range sourceTypes {
		if source, ok := r.sources[st]; ok && source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}
