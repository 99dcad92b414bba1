package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"docqa/internal/domain"
)

type collection struct {
	dimension int
	points    []domain.Point
	byID      map[int]int
}

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Collections are isolated from each other.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewStorage() *Storage { return &Storage{collections: make(map[string]*collection)} }

func (s *Storage) Recreate(_ context.Context, name string, dimension int, distance domain.Distance) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if distance != domain.DistanceCosine {
		return fmt.Errorf("unsupported distance %q", distance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = &collection{dimension: dimension, byID: make(map[int]int)}
	return nil
}

func (s *Storage) Upsert(_ context.Context, name string, points []domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, p := range points {
		if i, ok := c.byID[p.ID]; ok {
			c.points[i] = p
			continue
		}
		c.byID[p.ID] = len(c.points)
		c.points = append(c.points, p)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, name string, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(c.points))
	for i, p := range c.points {
		results[i] = domain.SearchResult{Chunk: p.Chunk, Score: cosine(p.Vector, vector)}
	}
	// ties keep insertion order
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Storage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
