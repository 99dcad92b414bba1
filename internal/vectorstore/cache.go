package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"docqa/internal/domain"
)

// Handle is a retrieval handle bound to one collection.
type Handle struct {
	collection string
	store      domain.VectorStore
	embedder   domain.Embedder
}

// Collection returns the collection id the handle is bound to.
func (h *Handle) Collection() string { return h.collection }

// SimilaritySearch embeds query and returns the k most similar chunks.
func (h *Handle) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	vec, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return h.store.Search(ctx, h.collection, vec, k)
}

// Recreate drops and recreates the collection with cosine distance.
func (h *Handle) Recreate(ctx context.Context, dimension int) error {
	return h.store.Recreate(ctx, h.collection, dimension, domain.DistanceCosine)
}

// Upsert writes points into the collection.
func (h *Handle) Upsert(ctx context.Context, points []domain.Point) error {
	return h.store.Upsert(ctx, h.collection, points)
}

// Cache lazily creates and memoizes one Handle per collection id.
// It is safe for concurrent use; concurrent first use of an id observes
// a single handle.
type Cache struct {
	store    domain.VectorStore
	embedder domain.Embedder

	mu      sync.Mutex
	handles map[string]*Handle
	builds  int
}

// NewCache creates an empty cache over store and embedder.
func NewCache(store domain.VectorStore, embedder domain.Embedder) *Cache {
	return &Cache{store: store, embedder: embedder, handles: make(map[string]*Handle)}
}

// Handle returns the handle for collection, constructing it on first use.
func (c *Cache) Handle(collection string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[collection]; ok {
		return h
	}
	h := &Handle{collection: collection, store: c.store, embedder: c.embedder}
	c.handles[collection] = h
	c.builds++
	return h
}

// Delete drops collection from the store and releases its handle. A later
// Handle call for the same id builds a new one.
func (c *Cache) Delete(ctx context.Context, collection string) error {
	if err := c.store.Delete(ctx, collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, collection)
	return nil
}

// Len returns the number of memoized handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Builds returns how many handles have been constructed.
func (c *Cache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}
