package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/ingest"
)

// Submitter queues ingestion jobs.
type Submitter interface {
	Submit(job ingest.Job) error
}

// Validator checks an uploaded file and returns its page count.
type Validator func(path string) (int, error)

// UploadResult identifies an accepted upload.
type UploadResult struct {
	Collection string
	Filename   string
	PageCount  int
}

// Uploader stores uploads on disk and schedules their ingestion.
type Uploader struct {
	dir      string
	validate Validator
	jobs     Submitter
	status   domain.StatusStore
	logger   *slog.Logger
}

// NewUploader creates an uploader writing into dir. validate and status may be nil.
func NewUploader(dir string, validate Validator, jobs Submitter, status domain.StatusStore, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{dir: dir, validate: validate, jobs: jobs, status: status, logger: logger}
}

// NewCollectionID returns a fresh collection id and the hex token it is built from.
func NewCollectionID() (collection, token string) {
	id := uuid.New()
	token = hex.EncodeToString(id[:])
	return "doc_" + token, token
}

// SaveError marks a failure to persist the uploaded bytes.
type SaveError struct{ Err error }

func (e *SaveError) Error() string { return "Failed to save file: " + e.Err.Error() }
func (e *SaveError) Unwrap() error { return e.Err }

// Upload saves r, validates it and queues ingestion. It returns once the job
// is queued; the temporary file is removed after ingestion.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	name := sanitizeFilename(filename)
	collection, token := NewCollectionID()
	path := filepath.Join(u.dir, token+"_"+name)
	log := u.logger.With("collection", collection, "file", name)

	if err := saveFile(path, r); err != nil {
		return UploadResult{}, &SaveError{Err: err}
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove upload", "path", path, "error", err)
		}
	}

	pages := 0
	if u.validate != nil {
		n, err := u.validate(path)
		if err != nil {
			cleanup()
			return UploadResult{}, err
		}
		pages = n
	}

	now := time.Now().UTC()
	if u.status != nil {
		err := u.status.Save(ctx, domain.IngestionStatus{
			Collection: collection,
			Filename:   name,
			State:      domain.StateQueued,
			PageCount:  pages,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			log.Warn("status update failed", "error", err)
		}
	}

	job := ingest.Job{
		Document:   domain.Document{Filename: name, Path: path, PageCount: pages},
		Collection: collection,
		Cleanup:    cleanup,
	}
	if err := u.jobs.Submit(job); err != nil {
		cleanup()
		if u.status != nil {
			_ = u.status.Save(ctx, domain.IngestionStatus{
				Collection: collection, Filename: name, State: domain.StateFailed,
				PageCount: pages, Error: err.Error(), CreatedAt: now, UpdatedAt: time.Now().UTC(),
			})
		}
		return UploadResult{}, fmt.Errorf("schedule ingestion: %w", err)
	}
	log.Info("upload accepted", "pages", pages)
	return UploadResult{Collection: collection, Filename: name, PageCount: pages}, nil
}

func saveFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.pdf"
	}
	return name
}
