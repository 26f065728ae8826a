//go:build !ocr

package ocr

import "context"

// Available reports whether the OCR capability was compiled in.
func Available() bool { return false }

// Client is the stub recognition client compiled without the "ocr" tag.
type Client struct{}

// NewClient creates a stub client. All recognition attempts fail with
// ErrUnavailable.
func NewClient(opts Options) *Client { return &Client{} }

// Recognize always returns ErrUnavailable.
func (c *Client) Recognize(ctx context.Context, imageData []byte) (string, error) {
	return "", ErrUnavailable
}

// Close releases nothing.
func (c *Client) Close() error { return nil }
