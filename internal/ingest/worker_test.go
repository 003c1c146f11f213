package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"orgdocs/backend/internal/apperr"
)

// --- Mocks ---

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	args := m.Called(ctx, sourceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockParser struct {
	mock.Mock
}

func (m *MockParser) ExtractPages(data []byte) ([]string, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) ReplaceDocumentChunks(ctx context.Context, docID int64, chunks []Chunk) error {
	args := m.Called(ctx, docID, chunks)
	return args.Error(0)
}

func TestWorker_Run_Success(t *testing.T) {
	fetcher := &MockFetcher{}
	parser := &MockParser{}
	embedder := &MockEmbedder{}
	store := &MockVectorStore{}

	payload := []byte("%PDF-1.4")
	fetcher.On("Fetch", mock.Anything, "http://x/42.pdf").Return(payload, nil)
	// Seven chunks: 650 runes split at size 100 with no overlap.
	parser.On("ExtractPages", payload).Return([]string{strings.Repeat("a", 650)}, nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2}, nil)
	store.On("ReplaceDocumentChunks", mock.Anything, int64(42), mock.MatchedBy(func(chunks []Chunk) bool {
		if len(chunks) != 7 {
			return false
		}
		for i, c := range chunks {
			if c.DocID != 42 || c.ChunkIndex != i || len(c.Vector) != 2 {
				return false
			}
		}
		return true
	})).Return(nil)

	w := NewWorker(fetcher, parser, embedder, store, 100, 0)
	count, err := w.Run(context.Background(), 42, "http://x/42.pdf")

	assert.NoError(t, err)
	assert.Equal(t, 7, count)
	store.AssertExpectations(t)
}

func TestWorker_Run_FetchFailureShortCircuits(t *testing.T) {
	fetcher := &MockFetcher{}
	parser := &MockParser{}
	embedder := &MockEmbedder{}
	store := &MockVectorStore{}

	fetcher.On("Fetch", mock.Anything, "http://x/9.pdf").
		Return(nil, apperr.Newf(apperr.ErrFetch, "status 404 for http://x/9.pdf"))

	w := NewWorker(fetcher, parser, embedder, store, 1000, 100)
	_, err := w.Run(context.Background(), 9, "http://x/9.pdf")

	assert.ErrorIs(t, err, apperr.ErrFetch)
	parser.AssertNotCalled(t, "ExtractPages", mock.Anything)
	store.AssertNotCalled(t, "ReplaceDocumentChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_Run_BlankDocumentIsChunkError(t *testing.T) {
	fetcher := &MockFetcher{}
	parser := &MockParser{}
	w := NewWorker(fetcher, parser, &MockEmbedder{}, &MockVectorStore{}, 1000, 100)

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return([]byte("%PDF-"), nil)
	parser.On("ExtractPages", mock.Anything).Return([]string{"   ", "\n"}, nil)

	_, err := w.Run(context.Background(), 5, "http://x/5.pdf")
	assert.ErrorIs(t, err, apperr.ErrChunk)
}

func TestWorker_Run_EmbedFailureIsIndexWriteError(t *testing.T) {
	fetcher := &MockFetcher{}
	parser := &MockParser{}
	embedder := &MockEmbedder{}
	store := &MockVectorStore{}

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return([]byte("%PDF-"), nil)
	parser.On("ExtractPages", mock.Anything).Return([]string{"some real content"}, nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	w := NewWorker(fetcher, parser, embedder, store, 1000, 100)
	_, err := w.Run(context.Background(), 5, "http://x/5.pdf")

	assert.ErrorIs(t, err, apperr.ErrIndexWrite)
	store.AssertNotCalled(t, "ReplaceDocumentChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_Run_StoreFailureIsIndexWriteError(t *testing.T) {
	fetcher := &MockFetcher{}
	parser := &MockParser{}
	embedder := &MockEmbedder{}
	store := &MockVectorStore{}

	fetcher.On("Fetch", mock.Anything, mock.Anything).Return([]byte("%PDF-"), nil)
	parser.On("ExtractPages", mock.Anything).Return([]string{"some real content"}, nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	store.On("ReplaceDocumentChunks", mock.Anything, int64(5), mock.Anything).Return(assert.AnError)

	w := NewWorker(fetcher, parser, embedder, store, 1000, 100)
	_, err := w.Run(context.Background(), 5, "http://x/5.pdf")

	assert.ErrorIs(t, err, apperr.ErrIndexWrite)
}
