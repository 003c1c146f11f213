package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"

	"orgdocs/backend/internal/config"
	"orgdocs/backend/internal/middleware"
)

// runTimeout bounds one pipeline execution. Large documents with slow
// embedding calls dominate this; a run that exceeds it publishes a failed
// event like any other pipeline error.
const runTimeout = 10 * time.Minute

type Runner interface {
	Run(ctx context.Context, docID int64, sourceURL string) (int, error)
}

// Publisher is satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Dispatcher schedules ingestion jobs on a bounded worker pool. Submission is
// fire-and-forget with at-least-once semantics: a crash between dispatch and
// the terminal event leaves the document pending, and the worker's
// replace-not-append indexing makes redelivery safe.
type Dispatcher struct {
	pool   *ants.Pool
	runner Runner
	pub    Publisher
}

func NewDispatcher(workers int, runner Runner, pub Publisher) (*Dispatcher, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool, runner: runner, pub: pub}, nil
}

// Submit queues one ingestion job. When the pool is saturated the submitting
// goroutine blocks until a worker frees up, which is the backpressure the
// creation path relies on.
func (d *Dispatcher) Submit(docID int64, sourceURL string, departmentIDs []int64, correlationID string) {
	err := d.pool.Submit(func() {
		d.runOne(docID, sourceURL, departmentIDs, correlationID)
	})
	if err != nil {
		slog.Error("failed to schedule ingestion job", "doc_id", docID, "error", err)
	}
}

func (d *Dispatcher) runOne(docID int64, sourceURL string, departmentIDs []int64, correlationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if correlationID != "" {
		ctx = middleware.WithCorrelationID(ctx, correlationID)
	}

	event := Event{
		DocID:         docID,
		Departments:   departmentIDs,
		CorrelationID: correlationID,
	}
	topic := config.TopicIngestComplete

	chunkCount, err := d.runner.Run(ctx, docID, sourceURL)
	if err != nil {
		slog.ErrorContext(ctx, "ingestion run failed", "doc_id", docID, "error", err)
		event.Status = StatusFailed
		event.Error = err.Error()
		topic = config.TopicIngestFailed
	} else {
		event.Status = StatusIngested
		event.ChunkCount = chunkCount
	}

	body, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal terminal event", "doc_id", docID, "error", err)
		return
	}

	// Fire-and-forget: the worker neither blocks on nor learns of delivery.
	if err := d.pub.Publish(topic, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish terminal event", "doc_id", docID, "topic", topic, "error", err)
		return
	}
	slog.InfoContext(ctx, "published terminal event", "doc_id", docID, "topic", topic, "status", event.Status)
}

// Close waits for in-flight jobs and releases the pool.
func (d *Dispatcher) Close() {
	d.pool.Release()
}
