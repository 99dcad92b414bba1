// Package milvus stores document collections in Milvus. Each collection has
// an int64 primary key, a float vector, the chunk text and its metadata as JSON.
package milvus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Field names for document collections
const (
	FieldID          = "id"
	FieldVector      = "vector"
	FieldPageContent = "page_content"
	FieldMetadata    = "metadata"
)

const maxVarCharLength = 65535

type Config struct {
	Address string
	APIKey  string
	Timeout time.Duration
}

// Storage implements domain.VectorStore on top of a Milvus server.
type Storage struct {
	client  *milvusclient.Client
	timeout time.Duration
}

// NewStorage connects to Milvus.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Address == "" {
		return nil, errors.New("milvus address is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address: cfg.Address,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus at %s: %w", cfg.Address, err)
	}
	return &Storage{client: c, timeout: timeout}, nil
}

// Close releases the underlying connection.
func (s *Storage) Close(ctx context.Context) error { return s.client.Close(ctx) }

func (s *Storage) Recreate(ctx context.Context, collection string, dimension int, distance domain.Distance) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	metric, err := metricType(distance)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, collection); err != nil {
		return err
	}

	schema := &entity.Schema{
		CollectionName: collection,
		Description:    "document chunks",
		Fields: []*entity.Field{
			{
				Name:       FieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     FieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dimension),
				},
			},
			{
				Name:     FieldPageContent,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": strconv.Itoa(maxVarCharLength),
				},
			},
			{
				Name:     FieldMetadata,
				DataType: entity.FieldTypeJSON,
			},
		},
	}
	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(collection, schema)); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}

	idxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(collection, FieldVector, index.NewHNSWIndex(metric, 16, 200)))
	if err != nil {
		return fmt.Errorf("create index on %s: %w", collection, err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("await index on %s: %w", collection, err)
	}

	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("load collection %s: %w", collection, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("await load of %s: %w", collection, err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	dim := len(points[0].Vector)
	ids := make([]int64, len(points))
	vectors := make([][]float32, len(points))
	contents := make([]string, len(points))
	metas := make([][]byte, len(points))
	for i, p := range points {
		if len(p.Vector) != dim {
			return errors.New("vector dimension mismatch")
		}
		payload := vectorstore.NewPayload(p.Chunk)
		meta, err := json.Marshal(payload.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata of point %d: %w", p.ID, err)
		}
		ids[i] = int64(p.ID)
		vectors[i] = p.Vector
		contents[i] = truncateRunes(payload.PageContent, maxVarCharLength)
		metas[i] = meta
	}

	opt := milvusclient.NewColumnBasedInsertOption(collection).
		WithInt64Column(FieldID, ids).
		WithFloatVectorColumn(FieldVector, dim, vectors).
		WithVarcharColumn(FieldPageContent, contents).
		WithColumns(column.NewColumnJSONBytes(FieldMetadata, metas))
	if _, err := s.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrNotFound)
	}

	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldVector).
		WithOutputFields(FieldPageContent, FieldMetadata).
		WithConsistencyLevel(entity.ClStrong)
	sets, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	rs := sets[0]
	return decodeRows(rs.ResultCount, rs.Scores, rs.GetColumn(FieldPageContent), rs.GetColumn(FieldMetadata))
}

// Delete drops the collection if it exists.
func (s *Storage) Delete(ctx context.Context, collection string) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("check collection %s: %w", collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("drop collection %s: %w", collection, err)
	}
	return nil
}

// decodeRows converts search output columns into results. Rows whose
// metadata cannot be parsed keep their text with default metadata.
func decodeRows(count int, scores []float32, contents, metas column.Column) ([]domain.SearchResult, error) {
	if contents == nil {
		return nil, fmt.Errorf("search result missing %s column", FieldPageContent)
	}
	results := make([]domain.SearchResult, 0, count)
	for i := 0; i < count; i++ {
		text, err := contents.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", FieldPageContent, i, err)
		}
		payload := vectorstore.Payload{PageContent: text}
		if raw := jsonAt(metas, i); len(raw) > 0 {
			_ = json.Unmarshal(raw, &payload.Metadata)
		}
		var score float64
		if i < len(scores) {
			score = float64(scores[i])
		}
		results = append(results, domain.SearchResult{Chunk: payload.Chunk(), Score: score})
	}
	return results, nil
}

func jsonAt(col column.Column, i int) []byte {
	if col == nil {
		return nil
	}
	if j, ok := col.(*column.ColumnJSONBytes); ok {
		raw, err := j.Value(i)
		if err != nil {
			return nil
		}
		return raw
	}
	v, err := col.Get(i)
	if err != nil {
		return nil
	}
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	}
	return nil
}

func metricType(d domain.Distance) (entity.MetricType, error) {
	switch strings.ToLower(string(d)) {
	case "cosine":
		return entity.COSINE, nil
	case "dot":
		return entity.IP, nil
	case "euclid":
		return entity.L2, nil
	}
	return "", fmt.Errorf("unsupported distance %q", d)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
