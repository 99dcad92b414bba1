package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	statusmem "docqa/internal/status/memory"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
)

func TestRemover_DropsVectorsAndStatus(t *testing.T) {
	ctx := context.Background()
	emb := hashing.NewEmbedder(32)
	store := memory.NewStorage()
	cache := vectorstore.NewCache(store, emb)
	statuses := statusmem.NewStore()
	require.NoError(t, cache.Handle("doc_1").Recreate(ctx, emb.Dimension()))
	require.NoError(t, statuses.Save(ctx, domain.IngestionStatus{Collection: "doc_1", State: domain.StateReady}))

	r := NewRemover(cache, statuses, quietLogger())
	require.NoError(t, r.Remove(ctx, "doc_1"))

	_, err := store.Search(ctx, "doc_1", []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = statuses.Get(ctx, "doc_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, r.Remove(ctx, "doc_unknown"))
	assert.ErrorIs(t, r.Remove(ctx, " "), domain.ErrCollectionRequired)
}
