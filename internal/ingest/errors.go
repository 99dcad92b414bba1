package ingest

import (
	"errors"
	"fmt"
)

// ErrWorkerClosed is returned by Submit after Shutdown has been called.
var ErrWorkerClosed = errors.New("ingestion worker is shut down")

// Stages reported by Error.
const (
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
	StagePanic   = "panic"
)

// Error is a failed ingestion run annotated with the stage that failed.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("ingest %s: %v", e.Stage, e.Err) }

func (e *Error) Unwrap() error { return e.Err }
