//go:build ocr

// Package ocr recognizes text in page images of scanned documents.
//
// It wraps the Tesseract engine via gosseract, which must be installed on the
// host. On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr tesseract-ocr-hin
package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Client runs OCR on image bytes. A Tesseract handle is not safe for
// concurrent use, so calls are serialized.
type Client struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a client recognizing the given "+" separated languages,
// e.g. "eng+hin". An empty string keeps Tesseract's default.
func New(languages string) (*Client, error) {
	client := gosseract.NewClient()
	if languages != "" {
		if err := client.SetLanguage(strings.Split(languages, "+")...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set OCR language %q: %w", languages, err)
		}
	}
	return &Client{client: client}, nil
}

// Close releases the Tesseract handle.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Recognize returns the trimmed text found in a PNG, JPEG or TIFF image.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := c.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
