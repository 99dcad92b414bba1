package vectorstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

func TestCache_ConcurrentFirstUseBuildsOnce(t *testing.T) {
	c := vectorstore.NewCache(memory.NewStorage(), hashing.NewEmbedder(64))
	const n = 32
	handles := make([]*vectorstore.Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = c.Handle("doc_x")
		}(i)
	}
	wg.Wait()
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, 1, c.Builds())
	assert.Equal(t, 1, c.Len())
}

func TestCache_RepeatedUseKeepsOneHandle(t *testing.T) {
	c := vectorstore.NewCache(memory.NewStorage(), hashing.NewEmbedder(64))
	first := c.Handle("a")
	c.Handle("b")
	assert.Same(t, first, c.Handle("a"))
	assert.Equal(t, 2, c.Builds())
}

func TestCache_DeleteDropsCollectionAndHandle(t *testing.T) {
	ctx := context.Background()
	emb := hashing.NewEmbedder(64)
	c := vectorstore.NewCache(memory.NewStorage(), emb)
	first := c.Handle("a")
	require.NoError(t, first.Recreate(ctx, emb.Dimension()))

	require.NoError(t, c.Delete(ctx, "a"))
	assert.Zero(t, c.Len())
	_, err := c.Handle("a").SimilaritySearch(ctx, "anything", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, c.Builds())
}

func TestHandle_SimilaritySearch(t *testing.T) {
	ctx := context.Background()
	emb := hashing.NewEmbedder(256)
	c := vectorstore.NewCache(memory.NewStorage(), emb)
	h := c.Handle("doc_1")
	require.Equal(t, "doc_1", h.Collection())
	require.NoError(t, h.Recreate(ctx, emb.Dimension()))

	texts := []string{"quarterly revenue grew strongly", "the cat sat on the mat"}
	var points []domain.Point
	for i, text := range texts {
		v, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		points = append(points, domain.Point{ID: i, Vector: v, Chunk: domain.Chunk{Index: i, Text: text}})
	}
	require.NoError(t, h.Upsert(ctx, points))

	res, err := h.SimilaritySearch(ctx, "revenue growth", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, texts[0], res[0].Chunk.Text)
}

func TestPayload_RoundTripKeepsMetadata(t *testing.T) {
	s, e := 3, 9
	ch := domain.Chunk{Index: 2, Text: "x", Page: 5, Source: "f.pdf", HasTable: true, Type: domain.ChunkMixed, CharStart: &s, CharEnd: &e, OCRUsed: true}
	assert.Equal(t, ch, vectorstore.NewPayload(ch).Chunk())

	legacy := vectorstore.Payload{PageContent: "y", Metadata: vectorstore.Metadata{Page: 1}}
	assert.Equal(t, domain.ChunkText, legacy.Chunk().Type)
}
