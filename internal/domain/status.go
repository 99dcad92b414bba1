package domain

import "time"

// IngestionState is the lifecycle state of a collection.
type IngestionState string

const (
	StateQueued     IngestionState = "QUEUED"
	StateProcessing IngestionState = "PROCESSING"
	StateReady      IngestionState = "READY"
	StateFailed     IngestionState = "FAILED"
)

// IngestionStatus tracks one ingestion run for a collection.
type IngestionStatus struct {
	Collection    string         `json:"collection" firestore:"collection"`
	Filename      string         `json:"filename" firestore:"filename"`
	State         IngestionState `json:"state" firestore:"state"`
	PageCount     int            `json:"page_count" firestore:"pageCount"`
	ChunkCount    int            `json:"chunk_count" firestore:"chunkCount"`
	SkippedChunks int            `json:"skipped_chunks" firestore:"skippedChunks"`
	OCRPages      int            `json:"ocr_pages" firestore:"ocrPages"`
	Summary       string         `json:"summary,omitempty" firestore:"summary"`
	Error         string         `json:"error,omitempty" firestore:"error"`
	CreatedAt     time.Time      `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time      `json:"updated_at" firestore:"updatedAt"`
}

// Terminal reports whether the run has finished, successfully or not.
func (s IngestionStatus) Terminal() bool {
	return s.State == StateReady || s.State == StateFailed
}
