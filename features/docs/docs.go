// Package docs manages organizational documents: creation, listing under
// per-department access control, access updates, deletion and re-ingestion.
package docs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"orgdocs/backend/internal/apperr"
	"orgdocs/backend/internal/cache"
	"orgdocs/backend/internal/ingest"
	"orgdocs/backend/internal/middleware"
)

// Document is the durable record. Status is pending on creation and mutated
// only by the reconciler after a terminal ingestion event.
type Document struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	SourceURL     string  `json:"source_url"`
	Status        string  `json:"status"`
	DepartmentIDs []int64 `json:"department_ids"`
}

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id int64) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	ListByDepartment(ctx context.Context, departmentID int64) ([]Document, error)
	DocIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	SetDepartments(ctx context.Context, id int64, departmentIDs []int64) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Dispatcher hands ingestion jobs to the worker pool, fire-and-forget.
type Dispatcher interface {
	Submit(docID int64, sourceURL string, departmentIDs []int64, correlationID string)
}

// ChunkIndex is the slice of the embedding index document deletion needs.
type ChunkIndex interface {
	DeleteByDocument(ctx context.Context, docID int64) error
}

type Service struct {
	repo       Repository
	cache      cache.Store
	dispatcher Dispatcher
	index      ChunkIndex
	ttl        time.Duration
	group      singleflight.Group
}

func NewService(repo Repository, cacheStore cache.Store, dispatcher Dispatcher, index ChunkIndex, ttl time.Duration) *Service {
	return &Service{
		repo:       repo,
		cache:      cacheStore,
		dispatcher: dispatcher,
		index:      index,
		ttl:        ttl,
	}
}

// Create inserts the document in pending state, links its departments, and
// submits the ingestion job. The job outcome arrives later through the event
// bus; the caller observes it via the status stream or the read path.
func (s *Service) Create(ctx context.Context, title, sourceURL string, departmentIDs []int64) (*Document, error) {
	if title == "" || sourceURL == "" {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "title and source_url are required")
	}
	if len(departmentIDs) == 0 {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "at least one department is required")
	}

	doc := &Document{
		Title:         title,
		SourceURL:     sourceURL,
		Status:        ingest.StatusPending,
		DepartmentIDs: departmentIDs,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.InvalidationKeys(departmentIDs))
	s.dispatcher.Submit(doc.ID, sourceURL, departmentIDs, middleware.GetCorrelationID(ctx))

	slog.InfoContext(ctx, "document created and submitted", "doc_id", doc.ID, "departments", departmentIDs)
	return doc, nil
}

// ListAll returns every document, served from cache when possible.
func (s *Service) ListAll(ctx context.Context) ([]Document, error) {
	return s.cachedList(ctx, cache.AllDocsKey, func() ([]Document, error) {
		return s.repo.List(ctx)
	})
}

// ListForDepartment returns the documents one department may access.
func (s *Service) ListForDepartment(ctx context.Context, departmentID int64) ([]Document, error) {
	return s.cachedList(ctx, cache.DepartmentKey(departmentID), func() ([]Document, error) {
		return s.repo.ListByDepartment(ctx, departmentID)
	})
}

// cachedList is the shared read path: cache hit, or singleflight-deduped
// load plus cache fill. Cache failures degrade to a straight repo read.
func (s *Service) cachedList(ctx context.Context, key string, load func() ([]Document, error)) ([]Document, error) {
	if data, ok := s.cache.Get(ctx, key); ok {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err == nil {
			return docs, nil
		}
		slog.WarnContext(ctx, "discarding corrupt cache entry", "key", key)
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		docs, err := load()
		if err != nil {
			return nil, err
		}
		if docs == nil {
			docs = []Document{}
		}
		if data, err := json.Marshal(docs); err == nil {
			s.cache.Set(ctx, key, data, s.ttl)
		}
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Document), nil
}

// AccessibleDocIDs resolves the union of document ids the caller's
// departments may read. Per-department sets are cached under docs:access:{id}.
func (s *Service) AccessibleDocIDs(ctx context.Context, departmentIDs []int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	var union []int64

	for _, deptID := range departmentIDs {
		ids, err := s.accessIDsForDepartment(ctx, deptID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			union = append(union, id)
		}
	}
	return union, nil
}

func (s *Service) accessIDsForDepartment(ctx context.Context, departmentID int64) ([]int64, error) {
	key := cache.AccessKey(departmentID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var ids []int64
		if err := json.Unmarshal(data, &ids); err == nil {
			return ids, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		ids, err := s.repo.DocIDsByDepartment(ctx, departmentID)
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []int64{}
		}
		if data, err := json.Marshal(ids); err == nil {
			s.cache.Set(ctx, key, data, s.ttl)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]int64), nil
}

// Get returns one document by id.
func (s *Service) Get(ctx context.Context, id int64) (*Document, error) {
	return s.repo.Get(ctx, id)
}

// UpdateAccess replaces the document's department links and invalidates
// every key that could list the document under the old or new set.
func (s *Service) UpdateAccess(ctx context.Context, id int64, departmentIDs []int64) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.SetDepartments(ctx, id, departmentIDs); err != nil {
		return err
	}

	affected := unionDepartments(doc.DepartmentIDs, departmentIDs)
	s.cache.Invalidate(ctx, cache.InvalidationKeys(affected))

	slog.InfoContext(ctx, "document access updated", "doc_id", id, "departments", departmentIDs)
	return nil
}

// Delete removes the document, its indexed chunks and every cache key that
// could still list it. Index cleanup runs first so a half-finished delete
// never leaves searchable chunks for a record that is about to disappear.
func (s *Service) Delete(ctx context.Context, id int64) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.index.DeleteByDocument(ctx, id); err != nil {
		return apperr.Newf(apperr.ErrIndexWrite, "removing chunks for document %d: %v", id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, cache.InvalidationKeys(doc.DepartmentIDs))
	slog.InfoContext(ctx, "document deleted", "doc_id", id)
	return nil
}

// Reingest resets the document to pending and resubmits the ingestion job.
// This is the manual mitigation for documents stuck after a lost dispatch.
func (s *Service) Reingest(ctx context.Context, id int64) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, id, ingest.StatusPending); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.InvalidationKeys(doc.DepartmentIDs))
	s.dispatcher.Submit(doc.ID, doc.SourceURL, doc.DepartmentIDs, middleware.GetCorrelationID(ctx))

	slog.InfoContext(ctx, "document resubmitted", "doc_id", id)
	return nil
}

func unionDepartments(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	var union []int64
	for _, id := range append(append([]int64{}, a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		union = append(union, id)
	}
	return union
}
