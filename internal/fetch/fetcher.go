// Package fetch resolves a document's source reference to its raw bytes.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"orgdocs/backend/internal/apperr"
)

// maxPayloadBytes caps a single download. Anything larger than this is not a
// document we want to chunk and embed in one worker slot.
const maxPayloadBytes = 100 << 20 // 100MB

var pdfMagic = []byte("%PDF-")

type Fetcher struct {
	client *http.Client
}

func New(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// NewWithClient is used by tests to inject a client pointed at a fake server.
func NewWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// NormalizeDriveLink rewrites a Google Drive share link of the form
// .../file/d/<id>/view into the direct-download form. Any other URL passes
// through untouched.
func NormalizeDriveLink(rawURL string) string {
	if !strings.Contains(rawURL, "drive.google.com") || !strings.Contains(rawURL, "/file/d/") {
		return rawURL
	}
	_, rest, ok := strings.Cut(rawURL, "/file/d/")
	if !ok {
		return rawURL
	}
	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return rawURL
	}
	return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", id)
}

// Fetch downloads the source and returns its bytes. Non-2xx responses and
// empty payloads are fetch errors; a payload that is not a PDF (typically an
// HTML login or redirect page served in place of the file) is a validation
// error.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	target := NormalizeDriveLink(sourceURL)
	if target != sourceURL {
		slog.InfoContext(ctx, "normalized drive link", "url", target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrFetch, "invalid source url %q: %v", sourceURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperr.Newf(apperr.ErrFetch, "request failed for %s: %v", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Newf(apperr.ErrFetch, "status %d for %s", resp.StatusCode, target)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, apperr.Newf(apperr.ErrFetch, "reading body for %s: %v", target, err)
	}
	if len(data) == 0 {
		return nil, apperr.Newf(apperr.ErrFetch, "empty payload for %s", target)
	}

	if err := ValidateContentType(data); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "fetched document", "url", target, "bytes", len(data))
	return data, nil
}

// ValidateContentType checks the payload against the expected document
// format by sniffing its magic bytes rather than trusting response headers.
func ValidateContentType(data []byte) error {
	if bytes.HasPrefix(data, pdfMagic) {
		return nil
	}
	detected := http.DetectContentType(data)
	return apperr.Newf(apperr.ErrValidation, "expected a PDF payload, got %s", detected)
}
