// Package ingest runs the download-parse-chunk-embed pipeline for one
// document and publishes its terminal outcome to the event bus.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"orgdocs/backend/internal/apperr"
	"orgdocs/backend/internal/text"
)

// Chunk is one embedded segment of a document, tagged with its owner.
type Chunk struct {
	Content    string
	Vector     []float32
	DocID      int64
	ChunkIndex int
}

type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]byte, error)
}

type PageExtractor interface {
	ExtractPages(data []byte) ([]string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore must replace, not append: re-running the pipeline for the same
// document first clears its previous chunks, which is what makes at-least-once
// dispatch safe.
type VectorStore interface {
	ReplaceDocumentChunks(ctx context.Context, docID int64, chunks []Chunk) error
}

type Worker struct {
	fetcher      Fetcher
	parser       PageExtractor
	embedder     Embedder
	store        VectorStore
	chunkSize    int
	chunkOverlap int
}

func NewWorker(f Fetcher, p PageExtractor, e Embedder, s VectorStore, chunkSize, chunkOverlap int) *Worker {
	return &Worker{
		fetcher:      f,
		parser:       p,
		embedder:     e,
		store:        s,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Run executes the pipeline for one document and returns the number of
// chunks indexed. Any error is terminal for this run; the caller converts it
// into a failed event and decides whether to resubmit.
func (w *Worker) Run(ctx context.Context, docID int64, sourceURL string) (int, error) {
	slog.InfoContext(ctx, "ingestion started", "doc_id", docID, "source", sourceURL)

	data, err := w.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return 0, err
	}

	pages, err := w.parser.ExtractPages(data)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "document parsed", "doc_id", docID, "pages", len(pages))

	segments := text.SplitText(text.JoinPages(pages), w.chunkSize, w.chunkOverlap)
	if len(segments) == 0 {
		return 0, apperr.Newf(apperr.ErrChunk, "document %d produced no chunks", docID)
	}

	chunks := make([]Chunk, 0, len(segments))
	for i, segment := range segments {
		embedCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		vector, err := w.embedder.Embed(embedCtx, segment)
		cancel()
		if err != nil {
			return 0, apperr.Newf(apperr.ErrIndexWrite, "embedding chunk %d of document %d: %v", i, docID, err)
		}
		chunks = append(chunks, Chunk{
			Content:    segment,
			Vector:     vector,
			DocID:      docID,
			ChunkIndex: i,
		})
	}

	if err := w.store.ReplaceDocumentChunks(ctx, docID, chunks); err != nil {
		return 0, apperr.Newf(apperr.ErrIndexWrite, "storing %d chunks for document %d: %v", len(chunks), docID, err)
	}

	slog.InfoContext(ctx, "ingestion finished", "doc_id", docID, "chunks", len(chunks))
	return len(chunks), nil
}
