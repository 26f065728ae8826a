//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Available reports whether the OCR capability was compiled in.
func Available() bool { return true }

// Client performs OCR using a local Tesseract installation.
type Client struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

// NewClient creates an OCR client with the given options.
func NewClient(opts Options) *Client {
	return &Client{
		opts:          opts,
		clientFactory: gosseract.NewClient,
	}
}

// Recognize runs Tesseract over an encoded image (PNG, JPEG, TIFF) and
// returns the recognized text, trimmed. The call is bounded by the client
// timeout or the context deadline, whichever expires first.
func (c *Client) Recognize(ctx context.Context, imageData []byte) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		text, err := c.recognize(imageData)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("ocr: recognition aborted: %w", ctx.Err())
	case r := <-done:
		return r.text, r.err
	}
}

// recognize drives one gosseract client. Tesseract calls are blocking cgo;
// cancellation is handled by the caller abandoning this goroutine.
func (c *Client) recognize(imageData []byte) (string, error) {
	client := c.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("ocr: failed to set image: %w", err)
	}

	if len(c.opts.Languages) > 0 {
		if err := client.SetLanguage(c.opts.Languages...); err != nil {
			return "", fmt.Errorf("ocr: failed to set languages: %w", err)
		}
	}

	if err := client.SetPageSegMode(gosseract.PageSegMode(c.opts.PageSegMode)); err != nil {
		return "", fmt.Errorf("ocr: failed to set page segmentation mode: %w", err)
	}

	// The engine mode has no dedicated setter in gosseract; it is applied
	// best-effort as a Tesseract variable.
	if err := client.SetVariable(gosseract.SettableVariable("tessedit_ocr_engine_mode"), strconv.Itoa(c.opts.EngineMode)); err != nil {
		return "", fmt.Errorf("ocr: failed to set engine mode: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognition failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// Close releases client resources. Per-call gosseract clients are closed as
// they are used, so there is nothing to release here.
func (c *Client) Close() error { return nil }
