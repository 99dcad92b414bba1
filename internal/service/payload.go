package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"docqa/internal/answer"
	"docqa/internal/domain"
	"docqa/internal/retrieval"
)

const (
	NoResultsAnswer   = "I couldn't find any relevant information in the document to answer your question."
	NoResultsSummary  = "No relevant information found"
	ErrorSummary      = "Error occurred during processing"
	ProcessingSummary = "Document is still being processed"
	FailedSummary     = "Document processing failed"
)

// Payload is one of the JSON bodies carried in the query response.
type Payload interface {
	payload()
}

// AnswerPayload is returned when an answer was generated.
type AnswerPayload struct {
	Answer            string              `json:"answer"`
	Locations         []domain.Location   `json:"locations"`
	Summary           string              `json:"summary"`
	RetrievalTime     float64             `json:"retrieval_time"`
	RerankTime        float64             `json:"rerank_time"`
	GenerationTime    float64             `json:"generation_time"`
	TotalTime         float64             `json:"total_time"`
	ModelUsed         string              `json:"model_used"`
	QueryType         retrieval.QueryType `json:"query_type"`
	DocumentsAnalyzed int                 `json:"documents_analyzed"`
	TablesFound       int                 `json:"tables_found"`
}

// NoResultsPayload is returned when nothing relevant was retrieved.
type NoResultsPayload struct {
	Answer        string              `json:"answer"`
	Locations     []domain.Location   `json:"locations"`
	Summary       string              `json:"summary"`
	RetrievalTime float64             `json:"retrieval_time"`
	RerankTime    float64             `json:"rerank_time"`
	QueryType     retrieval.QueryType `json:"query_type"`
}

// ErrorPayload is returned when the query could not be answered.
type ErrorPayload struct {
	Answer    string            `json:"answer"`
	Locations []domain.Location `json:"locations"`
	Summary   string            `json:"summary"`
	Error     string            `json:"error"`
}

func (AnswerPayload) payload()    {}
func (NoResultsPayload) payload() {}
func (ErrorPayload) payload()     {}

// Encode renders a payload as the JSON string placed in the response field.
func Encode(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

func errorPayload(locs []domain.Location, err error) ErrorPayload {
	if locs == nil {
		locs = []domain.Location{}
	}
	return ErrorPayload{Answer: answer.ErrorAnswer, Locations: locs, Summary: ErrorSummary, Error: err.Error()}
}

// PagesSummary lists the distinct pages of locs in ascending order.
func PagesSummary(locs []domain.Location) string {
	seen := map[int]struct{}{}
	var pages []int
	for _, l := range locs {
		if _, ok := seen[l.Page]; ok {
			continue
		}
		seen[l.Page] = struct{}{}
		pages = append(pages, l.Page)
	}
	sort.Ints(pages)
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return "Information found on page(s): " + strings.Join(parts, ", ")
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1e4) / 1e4
}

// ErrorResponse builds the error payload for a request that never reached retrieval.
func ErrorResponse(err error) ErrorPayload { return errorPayload(nil, err) }
