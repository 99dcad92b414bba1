//go:build !ocr

// Package ocr recognizes text in page images of scanned documents.
//
// This is the stub used when the "ocr" build tag is not set: New always
// returns ErrOCRNotEnabled.
package ocr

import "context"

// Client is a stub OCR client.
type Client struct{}

// New returns ErrOCRNotEnabled.
func New(languages string) (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op.
func (c *Client) Close() error { return nil }

// Recognize returns ErrOCRNotEnabled.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	return "", ErrOCRNotEnabled
}
