// Package service implements the question answering and upload use cases on
// top of ingestion, retrieval and answer synthesis.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docqa/internal/answer"
	"docqa/internal/domain"
	"docqa/internal/retrieval"
)

// Retriever selects candidate chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question, collection string) (retrieval.Outcome, error)
}

// Synthesizer generates an answer from candidates.
type Synthesizer interface {
	Model() string
	Synthesize(ctx context.Context, question string, candidates []domain.SearchResult, tableQuery bool) answer.Result
}

// QueryService answers questions against an ingested collection.
type QueryService struct {
	retriever   Retriever
	synthesizer Synthesizer
	status      domain.StatusStore
	logger      *slog.Logger
}

// NewQueryService wires the query path. status may be nil.
func NewQueryService(retriever Retriever, synthesizer Synthesizer, status domain.StatusStore, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{retriever: retriever, synthesizer: synthesizer, status: status, logger: logger}
}

// Query always returns a payload. Failures, including panics, become an
// ErrorPayload.
func (s *QueryService) Query(ctx context.Context, question, collection string) (p Payload) {
	log := s.logger.With("collection", collection)
	defer func() {
		if r := recover(); r != nil {
			log.Error("query panicked", "panic", r)
			p = errorPayload(nil, fmt.Errorf("internal error: %v", r))
		}
	}()

	question = strings.TrimSpace(question)
	switch {
	case question == "":
		return errorPayload(nil, domain.ErrEmptyQuestion)
	case strings.TrimSpace(collection) == "":
		return errorPayload(nil, domain.ErrCollectionRequired)
	}

	if np, blocked := s.notReady(ctx, log, collection); blocked {
		return np
	}

	start := time.Now()
	out, err := s.retriever.Retrieve(ctx, question, collection)
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return errorPayload(nil, err)
	}
	if len(out.Candidates) == 0 {
		log.Info("no relevant chunks", "query_type", out.QueryType, "initial", out.InitialCount)
		return NoResultsPayload{
			Answer:        NoResultsAnswer,
			Locations:     []domain.Location{},
			Summary:       NoResultsSummary,
			RetrievalTime: seconds(out.RetrievalTime),
			RerankTime:    seconds(out.RerankTime),
			QueryType:     out.QueryType,
		}
	}

	res := s.synthesizer.Synthesize(ctx, question, out.Candidates, out.QueryType == retrieval.QueryTable)
	if res.Err != nil {
		return errorPayload(res.Locations, res.Err)
	}

	tables := 0
	for _, c := range out.Candidates {
		if c.Chunk.HasTable {
			tables++
		}
	}
	total := time.Since(start)
	log.Info("query answered", "query_type", out.QueryType, "candidates", len(out.Candidates),
		"rerank_fallback", out.RerankFallback, "total", total)
	return AnswerPayload{
		Answer:            res.Answer,
		Locations:         res.Locations,
		Summary:           PagesSummary(res.Locations),
		RetrievalTime:     seconds(out.RetrievalTime),
		RerankTime:        seconds(out.RerankTime),
		GenerationTime:    seconds(res.GenerationTime),
		TotalTime:         seconds(total),
		ModelUsed:         s.synthesizer.Model(),
		QueryType:         out.QueryType,
		DocumentsAnalyzed: len(out.Candidates),
		TablesFound:       tables,
	}
}

// notReady reports collections whose ingestion is queued, running or failed.
// Unknown collections are let through so externally ingested data still works.
func (s *QueryService) notReady(ctx context.Context, log *slog.Logger, collection string) (Payload, bool) {
	if s.status == nil {
		return nil, false
	}
	st, err := s.status.Get(ctx, collection)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn("status lookup failed", "error", err)
		}
		return nil, false
	}
	var summary string
	switch st.State {
	case domain.StateQueued, domain.StateProcessing:
		summary = ProcessingSummary
	case domain.StateFailed:
		summary = FailedSummary
	default:
		return nil, false
	}
	return NoResultsPayload{
		Answer:    NoResultsAnswer,
		Locations: []domain.Location{},
		Summary:   summary,
		QueryType: retrieval.QueryText,
	}, true
}
