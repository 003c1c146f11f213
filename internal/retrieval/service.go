// Package retrieval answers similarity queries under department access
// control: only chunks of documents the caller's departments may read are
// ever returned.
package retrieval

import (
	"context"
	"log/slog"
	"time"
)

// Result is one surviving chunk, in descending score order.
type Result struct {
	Content    string  `json:"content"`
	DocumentID int64   `json:"document_id"`
	Score      float32 `json:"score"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index runs similarity search over all chunks; permission filtering happens
// here, above the index.
type Index interface {
	Search(ctx context.Context, vector []float32, limit int) ([]Result, error)
}

// AccessResolver returns the union of document ids the given departments may
// read.
type AccessResolver interface {
	AccessibleDocIDs(ctx context.Context, departmentIDs []int64) ([]int64, error)
}

type Service struct {
	embedder  Embedder
	index     Index
	access    AccessResolver
	overfetch int
}

// NewService builds the retrieval filter. overfetchFactor multiplies the
// requested result count before filtering so that discarding inaccessible
// candidates still leaves enough survivors.
func NewService(e Embedder, idx Index, access AccessResolver, overfetchFactor int) *Service {
	if overfetchFactor < 1 {
		overfetchFactor = 1
	}
	return &Service{embedder: e, index: idx, access: access, overfetch: overfetchFactor}
}

// Search returns up to k accessible chunks for the query, best first. An
// empty accessible set short-circuits without touching the index.
func (s *Service) Search(ctx context.Context, query string, departmentIDs []int64, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}
	start := time.Now()

	ids, err := s.access.AccessibleDocIDs(ctx, departmentIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "no accessible documents, skipping search", "departments", departmentIDs)
		return []Result{}, nil
	}

	accessible := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		accessible[id] = struct{}{}
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.index.Search(ctx, vector, k*s.overfetch)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, k)
	for _, c := range candidates {
		if _, ok := accessible[c.DocumentID]; !ok {
			continue
		}
		results = append(results, c)
		if len(results) == k {
			break
		}
	}

	slog.InfoContext(ctx, "search completed",
		"candidates", len(candidates),
		"results", len(results),
		"accessible_docs", len(ids),
		"duration", time.Since(start))
	return results, nil
}
