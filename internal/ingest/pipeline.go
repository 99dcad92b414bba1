// Package ingest turns an uploaded document into a populated vector collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

const (
	DefaultBatchSize        = 50
	DefaultEmbedConcurrency = 4
	DefaultSummarySentences = 3

	sampleText = "test"
)

// PageExtractor yields the ordered pages of a document.
type PageExtractor interface {
	Extract(ctx context.Context, doc domain.Document) ([]domain.Page, error)
}

// Options tunes a Pipeline. Zero values take defaults.
type Options struct {
	BatchSize        int
	EmbedConcurrency int
	EmbedTimeout     time.Duration
	SummarySentences int
}

// Result describes a finished ingestion run.
type Result struct {
	Pages    int
	OCRPages int
	Chunks   int
	Skipped  int
	Summary  string
}

// Pipeline extracts, chunks, embeds and stores one document per run.
type Pipeline struct {
	extractor  PageExtractor
	chunker    domain.Chunker
	embedder   domain.Embedder
	cache      *vectorstore.Cache
	status     domain.StatusStore
	summarizer domain.Summarizer
	opts       Options
	logger     *slog.Logger
}

// NewPipeline wires a pipeline. status and summarizer may be nil.
func NewPipeline(extractor PageExtractor, chunker domain.Chunker, embedder domain.Embedder, cache *vectorstore.Cache,
	status domain.StatusStore, summarizer domain.Summarizer, opts Options, logger *slog.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = DefaultSummarySentences
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		cache:      cache,
		status:     status,
		summarizer: summarizer,
		opts:       opts,
		logger:     logger,
	}
}

// Run ingests doc into collection, replacing any previous contents. Progress
// is recorded in the status store; a failed run is marked failed there and
// returned as *Error.
func (p *Pipeline) Run(ctx context.Context, doc domain.Document, collection string) (Result, error) {
	log := p.logger.With("collection", collection, "file", doc.Filename)
	started := time.Now()
	created := p.recordStart(ctx, doc, collection)

	res, err := p.safeRun(ctx, log, doc, collection)

	st := domain.IngestionStatus{
		Collection:    collection,
		Filename:      doc.Filename,
		State:         domain.StateReady,
		PageCount:     res.Pages,
		ChunkCount:    res.Chunks,
		SkippedChunks: res.Skipped,
		OCRPages:      res.OCRPages,
		Summary:       res.Summary,
		CreatedAt:     created,
		UpdatedAt:     time.Now().UTC(),
	}
	if err != nil {
		st.State = domain.StateFailed
		st.Error = err.Error()
		log.Error("ingestion failed", "error", err, "elapsed", time.Since(started))
	} else {
		log.Info("ingestion complete", "pages", res.Pages, "chunks", res.Chunks, "skipped", res.Skipped,
			"ocr_pages", res.OCRPages, "elapsed", time.Since(started))
	}
	p.saveStatus(ctx, log, st)
	return res, err
}

func (p *Pipeline) safeRun(ctx context.Context, log *slog.Logger, doc domain.Document, collection string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Stage: StagePanic, Err: fmt.Errorf("%v", r)}
		}
	}()
	return p.run(ctx, log, doc, collection)
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, doc domain.Document, collection string) (Result, error) {
	var res Result
	pages, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return res, &Error{Stage: StageExtract, Err: err}
	}
	res.Pages = len(pages)
	for _, pg := range pages {
		if pg.OCRUsed() {
			res.OCRPages++
		}
	}

	chunks := p.ChunkPages(pages, doc.Filename)
	log.Info("document chunked", "pages", len(pages), "chunks", len(chunks))
	if len(chunks) == 0 {
		return res, &Error{Stage: StageChunk, Err: domain.ErrNoChunks}
	}

	sample, err := p.embedWithTimeout(ctx, sampleText)
	if err != nil {
		return res, &Error{Stage: StageEmbed, Err: fmt.Errorf("sample embedding dimension: %w", err)}
	}
	dim := len(sample)
	if dim == 0 {
		return res, &Error{Stage: StageEmbed, Err: errors.New("embedder returned an empty vector")}
	}

	h := p.cache.Handle(collection)
	if err := h.Recreate(ctx, dim); err != nil {
		return res, &Error{Stage: StageStore, Err: err}
	}

	for start := 0; start < len(chunks); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(chunks))
		points, err := p.embedBatch(ctx, log, chunks[start:end], dim)
		if err != nil {
			return res, &Error{Stage: StageEmbed, Err: err}
		}
		res.Skipped += (end - start) - len(points)
		if len(points) == 0 {
			continue
		}
		if err := h.Upsert(ctx, points); err != nil {
			return res, &Error{Stage: StageStore, Err: err}
		}
		res.Chunks += len(points)
		log.Debug("batch stored", "from", start, "to", end, "stored", len(points))
	}
	if res.Chunks == 0 {
		return res, &Error{Stage: StageEmbed, Err: fmt.Errorf("all %d chunks failed to embed: %w", len(chunks), domain.ErrNoChunks)}
	}

	res.Summary = p.summarize(log, pages)
	return res, nil
}

// ChunkPages chunks every page and numbers the chunks in document order.
func (p *Pipeline) ChunkPages(pages []domain.Page, source string) []domain.Chunk {
	var chunks []domain.Chunk
	for _, pg := range pages {
		for _, ch := range p.chunker.Chunk(pg.Text, pg.Number, source) {
			ch.OCRUsed = pg.OCRUsed()
			ch.Index = len(chunks)
			chunks = append(chunks, ch)
		}
	}
	return chunks
}

// embedBatch embeds chunks concurrently and returns points in chunk order.
// Chunks that fail to embed are logged and left out. Only cancellation of
// ctx is returned as an error.
func (p *Pipeline) embedBatch(ctx context.Context, log *slog.Logger, chunks []domain.Chunk, dim int) ([]domain.Point, error) {
	vectors := make([][]float32, len(chunks))
	var g errgroup.Group
	g.SetLimit(p.opts.EmbedConcurrency)
	for i := range chunks {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v, err := p.embedWithTimeout(ctx, chunks[i].Text)
			if err != nil {
				log.Warn("chunk embedding failed, skipping", "chunk", chunks[i].Index, "page", chunks[i].Page, "error", err)
				return nil
			}
			if len(v) != dim {
				log.Warn("chunk embedding has wrong dimension, skipping", "chunk", chunks[i].Index, "got", len(v), "want", dim)
				return nil
			}
			vectors[i] = v
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points := make([]domain.Point, 0, len(chunks))
	for i, v := range vectors {
		if v == nil {
			continue
		}
		points = append(points, domain.Point{ID: chunks[i].Index, Vector: v, Chunk: chunks[i]})
	}
	return points, nil
}

func (p *Pipeline) embedWithTimeout(ctx context.Context, text string) ([]float32, error) {
	if p.opts.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.EmbedTimeout)
		defer cancel()
	}
	return p.embedder.Embed(ctx, text)
}

func (p *Pipeline) summarize(log *slog.Logger, pages []domain.Page) string {
	if p.summarizer == nil {
		return ""
	}
	texts := make([]string, 0, len(pages))
	for _, pg := range pages {
		texts = append(texts, pg.Text)
	}
	summary, err := p.summarizer.Summarize(strings.Join(texts, "\n"), p.opts.SummarySentences)
	if err != nil {
		log.Warn("summary failed", "error", err)
		return ""
	}
	return summary
}

// recordStart marks the collection as processing and returns its creation time.
func (p *Pipeline) recordStart(ctx context.Context, doc domain.Document, collection string) time.Time {
	now := time.Now().UTC()
	if p.status == nil {
		return now
	}
	created := now
	if prev, err := p.status.Get(ctx, collection); err == nil && !prev.CreatedAt.IsZero() {
		created = prev.CreatedAt
	}
	p.saveStatus(ctx, p.logger.With("collection", collection), domain.IngestionStatus{
		Collection: collection,
		Filename:   doc.Filename,
		State:      domain.StateProcessing,
		PageCount:  doc.PageCount,
		CreatedAt:  created,
		UpdatedAt:  now,
	})
	return created
}

func (p *Pipeline) saveStatus(ctx context.Context, log *slog.Logger, st domain.IngestionStatus) {
	if p.status == nil {
		return
	}
	// the run context may already be cancelled; status must still land
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.status.Save(sctx, st); err != nil {
		log.Warn("status update failed", "state", st.State, "error", err)
	}
}
