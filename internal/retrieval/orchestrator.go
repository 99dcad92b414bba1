// Package retrieval selects the chunks that answer a question: vector search,
// table boosting for table questions, then reranking with score thresholds.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Options tunes the orchestrator. Zero values take defaults.
type Options struct {
	InitialK         int
	TableInitialK    int
	TopK             int
	TableTopK        int
	Threshold        float64
	TableThreshold   float64
	TableChunkFactor float64
	SearchTimeout    time.Duration
	RerankTimeout    time.Duration
}

func (o *Options) applyDefaults() {
	if o.InitialK <= 0 {
		o.InitialK = 10
	}
	if o.TableInitialK <= 0 {
		o.TableInitialK = 15
	}
	if o.TopK <= 0 {
		o.TopK = 3
	}
	if o.TableTopK <= 0 {
		o.TableTopK = 4
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.30
	}
	if o.TableThreshold <= 0 {
		o.TableThreshold = 0.25
	}
	if o.TableChunkFactor <= 0 {
		o.TableChunkFactor = 0.8
	}
}

// Outcome is the result of one retrieval.
type Outcome struct {
	Candidates     []domain.SearchResult
	QueryType      QueryType
	InitialCount   int
	RetrievalTime  time.Duration
	RerankTime     time.Duration
	Reranked       bool
	RerankFallback bool
}

// Orchestrator runs the retrieval stages for one question at a time. It is
// safe for concurrent use.
type Orchestrator struct {
	cache      *vectorstore.Cache
	reranker   domain.Reranker
	classifier Classifier
	opts       Options
	logger     *slog.Logger
}

// NewOrchestrator wires an orchestrator. A nil reranker keeps the first
// top_k search results; a nil classifier uses the default keywords.
func NewOrchestrator(cache *vectorstore.Cache, reranker domain.Reranker, classifier Classifier, opts Options, logger *slog.Logger) *Orchestrator {
	opts.applyDefaults()
	if classifier == nil {
		classifier = NewKeywordClassifier(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cache: cache, reranker: reranker, classifier: classifier, opts: opts, logger: logger}
}

// Retrieve returns the accepted candidates for question. Only a failed
// initial search is returned as an error; reranking failures degrade to the
// unranked search order.
func (o *Orchestrator) Retrieve(ctx context.Context, question, collection string) (Outcome, error) {
	log := o.logger.With("collection", collection)
	out := Outcome{QueryType: o.classifier.Classify(question)}
	k, topK, threshold := o.opts.InitialK, o.opts.TopK, o.opts.Threshold
	if out.QueryType == QueryTable {
		k, topK, threshold = o.opts.TableInitialK, o.opts.TableTopK, o.opts.TableThreshold
	}

	start := time.Now()
	initial, err := o.search(ctx, question, collection, k)
	out.RetrievalTime = time.Since(start)
	if err != nil {
		return out, fmt.Errorf("initial search: %w", err)
	}
	out.InitialCount = len(initial)
	log.Debug("initial search done", "query_type", out.QueryType, "k", k, "found", len(initial), "elapsed", out.RetrievalTime)
	if len(initial) == 0 {
		return out, nil
	}

	ordered := initial
	if out.QueryType == QueryTable {
		ordered = BoostTables(initial)
	}

	if o.reranker == nil {
		out.Candidates = firstN(ordered, topK)
		return out, nil
	}

	start = time.Now()
	pool := firstN(ordered, 2*topK)
	scored, err := o.rerank(ctx, question, pool)
	out.RerankTime = time.Since(start)
	if err != nil {
		log.Warn("rerank failed, using search order", "error", err)
		out.RerankFallback = true
		out.Candidates = firstN(initial, topK)
		return out, nil
	}
	out.Reranked = true
	out.Candidates = o.accept(pool, scored, out.QueryType, threshold, topK)
	log.Debug("rerank done", "scored", len(scored), "accepted", len(out.Candidates), "elapsed", out.RerankTime)
	return out, nil
}

func (o *Orchestrator) search(ctx context.Context, question, collection string, k int) ([]domain.SearchResult, error) {
	if o.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.SearchTimeout)
		defer cancel()
	}
	return o.cache.Handle(collection).SimilaritySearch(ctx, question, k)
}

func (o *Orchestrator) rerank(ctx context.Context, question string, pool []domain.SearchResult) ([]domain.RerankResult, error) {
	if o.opts.RerankTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RerankTimeout)
		defer cancel()
	}
	docs := make([]string, len(pool))
	for i, c := range pool {
		docs[i] = c.Chunk.Text
	}
	scored, err := o.reranker.Rerank(ctx, question, docs, len(docs))
	if err != nil {
		return nil, err
	}
	for _, r := range scored {
		if r.Index < 0 || r.Index >= len(pool) {
			return nil, fmt.Errorf("reranker returned index %d for %d documents", r.Index, len(pool))
		}
	}
	return scored, nil
}

// accept keeps scored candidates above their threshold, best first. When none
// pass, the single best-scored candidate is kept.
func (o *Orchestrator) accept(pool []domain.SearchResult, scored []domain.RerankResult, qt QueryType, threshold float64, topK int) []domain.SearchResult {
	ranked := append([]domain.RerankResult(nil), scored...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	var accepted []domain.SearchResult
	for _, r := range ranked {
		c := pool[r.Index]
		if r.Score > EffectiveThreshold(threshold, o.opts.TableChunkFactor, qt, c.Chunk.HasTable) {
			c.Score = r.Score
			accepted = append(accepted, c)
		}
	}
	if len(accepted) == 0 && len(ranked) > 0 {
		best := pool[ranked[0].Index]
		best.Score = ranked[0].Score
		accepted = []domain.SearchResult{best}
	}
	return firstN(accepted, topK)
}

// EffectiveThreshold lowers the threshold by factor for table-bearing chunks
// on table questions.
func EffectiveThreshold(base, factor float64, qt QueryType, hasTable bool) float64 {
	if qt == QueryTable && hasTable {
		return base * factor
	}
	return base
}

// BoostTables moves table-bearing results ahead of the others, keeping the
// relative order inside both groups.
func BoostTables(results []domain.SearchResult) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Chunk.HasTable {
			out = append(out, r)
		}
	}
	for _, r := range results {
		if !r.Chunk.HasTable {
			out = append(out, r)
		}
	}
	return out
}

func firstN(results []domain.SearchResult, n int) []domain.SearchResult {
	if len(results) > n {
		results = results[:n]
	}
	return append([]domain.SearchResult(nil), results...)
}
