package domain

import "errors"

var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoChunks indicates a document produced no retrievable chunks.
	ErrNoChunks = errors.New("no chunks produced from document")

	// ErrEmptyQuestion indicates a query without question text.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrCollectionRequired indicates a query without a collection id.
	ErrCollectionRequired = errors.New("collection is required")

	// ErrQueueFull indicates the ingestion worker cannot accept more jobs.
	ErrQueueFull = errors.New("ingestion queue is full")

	// ErrEmptyResponse indicates an upstream service returned no usable content.
	ErrEmptyResponse = errors.New("empty response from service")

	// ErrUnsupportedDocument indicates the uploaded file is not a readable PDF.
	ErrUnsupportedDocument = errors.New("unsupported document")
)
