package domain

import "context"

// ChunkType classifies the content of a chunk.
type ChunkType string

const (
	ChunkText      ChunkType = "text"
	ChunkMixed     ChunkType = "mixed"
	ChunkTableOnly ChunkType = "table_only"
)

// Distance is the similarity metric of a vector collection.
type Distance string

const DistanceCosine Distance = "Cosine"

// Document represents a single uploaded file.
// Path points at the transient upload on disk; Content is optional.
type Document struct {
	Filename  string
	Path      string
	Content   []byte
	PageCount int
}

// Page is one page of a document after extraction.
type Page struct {
	Number  int
	Text    string
	OCRText string
	Images  [][]byte
}

// OCRUsed reports whether any text on the page came from OCR.
func (p Page) OCRUsed() bool { return p.OCRText != "" }

// Chunk is the atomic retrievable unit of a document.
// CharStart and CharEnd are rune offsets within the page text and may be nil.
type Chunk struct {
	Index     int
	Text      string
	Page      int
	Source    string
	HasTable  bool
	Type      ChunkType
	CharStart *int
	CharEnd   *int
	OCRUsed   bool
}

// Point is an embedded chunk ready to be written to a collection.
type Point struct {
	ID     int
	Vector []float32
	Chunk  Chunk
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// RerankResult is one scored document returned by a reranker.
// Index refers to the position in the submitted document list.
type RerankResult struct {
	Index int
	Score float64
}

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

// Location is the UI-facing projection of a selected chunk.
type Location struct {
	Page          int       `json:"page"`
	PageIndex     int       `json:"pageIndex"`
	Label         string    `json:"label"`
	Snippet       string    `json:"snippet"`
	FullText      string    `json:"full_text"`
	HasTable      bool      `json:"has_table"`
	ChunkType     ChunkType `json:"chunk_type"`
	CharStart     *int      `json:"char_start"`
	CharEnd       *int      `json:"char_end"`
	HighlightText string    `json:"highlightText"`
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits the text of one page into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(text string, page int, source string) []Chunk
}

// VectorStore persists vectors per collection and supports similarity search.
type VectorStore interface {
	Recreate(ctx context.Context, collection string, dimension int, distance Distance) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, k int) ([]SearchResult, error)
	Delete(ctx context.Context, collection string) error
}

// Reranker scores documents by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Model() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// StatusStore records the ingestion progress of collections.
type StatusStore interface {
	Save(ctx context.Context, status IngestionStatus) error
	Get(ctx context.Context, collection string) (IngestionStatus, error)
	Delete(ctx context.Context, collection string) error
}
