// Package reconcile is the sole authoritative subscriber of ingestion
// outcome events: it commits the document's terminal status, invalidates the
// listing caches, and notifies any observer — in that order.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"orgdocs/backend/internal/apperr"
	"orgdocs/backend/internal/cache"
	"orgdocs/backend/internal/config"
	"orgdocs/backend/internal/ingest"
	"orgdocs/backend/internal/middleware"
	"orgdocs/backend/internal/notify"
)

// DocumentStore commits status transitions. UpdateStatus is idempotent:
// re-applying the same terminal status is a no-op. It returns
// apperr.ErrNotFound when the document no longer exists.
type DocumentStore interface {
	UpdateStatus(ctx context.Context, docID int64, status string) error
}

type Notifier interface {
	Notify(msg notify.Message)
}

type Consumer struct {
	store    DocumentStore
	cache    cache.Store
	notifier Notifier
}

func NewConsumer(store DocumentStore, cacheStore cache.Store, notifier Notifier) *Consumer {
	return &Consumer{store: store, cache: cacheStore, notifier: notifier}
}

// HandleMessage processes one terminal event. It always returns nil for
// events it cannot act on: the channel contract is at-least-once and the
// status transition is idempotent, so redelivery heals any transient
// inconsistency while hot-retrying here would not.
func (c *Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var event ingest.Event
	if err := json.Unmarshal(m.Body, &event); err != nil {
		slog.Error("poison pill: invalid event json", "error", err)
		return nil
	}

	ctx := context.Background()
	if event.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, event.CorrelationID)
	}

	if event.DocID == 0 || (event.Status != ingest.StatusIngested && event.Status != ingest.StatusFailed) {
		slog.ErrorContext(ctx, "dropping malformed event", "doc_id", event.DocID, "status", event.Status)
		return nil
	}

	// 1. Commit the terminal status.
	if err := c.store.UpdateStatus(ctx, event.DocID, event.Status); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Deleted concurrently; nothing to reconcile.
			slog.WarnContext(ctx, "document gone, dropping event", "doc_id", event.DocID)
			return nil
		}
		slog.ErrorContext(ctx, "failed to update document status", "doc_id", event.DocID, "error", err)
		return nil
	}
	slog.InfoContext(ctx, "document status updated", "doc_id", event.DocID, "status", event.Status)

	// 2. Invalidate every listing key that could contain this document.
	keys := cache.InvalidationKeys(event.Departments)
	deleted := c.cache.Invalidate(ctx, keys)
	slog.InfoContext(ctx, "cache invalidated", "doc_id", event.DocID, "keys", len(keys), "deleted", deleted)

	// 3. Notify the document's observer, live or buffered.
	c.notifier.Notify(notify.Message{
		DocID:   event.DocID,
		Status:  event.Status,
		Message: statusText(event),
	})

	return nil
}

func statusText(event ingest.Event) string {
	if event.Status == ingest.StatusFailed {
		return fmt.Sprintf("Ingestion failed for document %d.", event.DocID)
	}
	return fmt.Sprintf("Ingestion %s for document %d.", event.Status, event.DocID)
}

// Start subscribes the consumer to both terminal topics on the reconciler
// channel. go-nsq polls nsqlookupd and reconnects on transport loss, so the
// subscription survives broker restarts.
func Start(cfg *config.Config, handler *Consumer) ([]*nsq.Consumer, error) {
	var consumers []*nsq.Consumer
	for _, topic := range []string{config.TopicIngestComplete, config.TopicIngestFailed} {
		consumer, err := nsq.NewConsumer(topic, config.ReconcilerChannel, nsq.NewConfig())
		if err != nil {
			stopAll(consumers)
			return nil, fmt.Errorf("creating consumer for %s: %w", topic, err)
		}
		consumer.AddHandler(nsq.HandlerFunc(handler.HandleMessage))
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			stopAll(consumers)
			return nil, fmt.Errorf("connecting consumer for %s: %w", topic, err)
		}
		consumers = append(consumers, consumer)
	}
	return consumers, nil
}

func stopAll(consumers []*nsq.Consumer) {
	for _, c := range consumers {
		c.Stop()
	}
}
