package milvus

import (
	"testing"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestDecodeRows(t *testing.T) {
	contents := column.NewColumnVarChar(FieldPageContent, []string{"| a | b |\n| 1 | 2 |", "plain"})
	metas := column.NewColumnJSONBytes(FieldMetadata, [][]byte{
		[]byte(`{"index":4,"page":2,"source":"a.pdf","has_table":true,"chunk_type":"table_only","char_start":7,"char_end":25}`),
		[]byte(`not json`),
	})

	res, err := decodeRows(2, []float32{0.8, 0.4}, contents, metas)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, domain.ChunkTableOnly, res[0].Chunk.Type)
	assert.Equal(t, 2, res[0].Chunk.Page)
	assert.Equal(t, 4, res[0].Chunk.Index)
	require.NotNil(t, res[0].Chunk.CharStart)
	assert.Equal(t, 7, *res[0].Chunk.CharStart)
	assert.InDelta(t, 0.8, res[0].Score, 1e-6)

	assert.Equal(t, "plain", res[1].Chunk.Text)
	assert.Equal(t, domain.ChunkText, res[1].Chunk.Type)
}

func TestDecodeRows_MissingContent(t *testing.T) {
	_, err := decodeRows(1, []float32{1}, nil, nil)
	assert.Error(t, err)
}

func TestMetricType(t *testing.T) {
	m, err := metricType(domain.DistanceCosine)
	require.NoError(t, err)
	assert.Equal(t, entity.COSINE, m)
	_, err = metricType("manhattan")
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
}
