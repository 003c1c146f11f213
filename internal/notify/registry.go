// Package notify delivers ingestion status messages to per-document
// observers, buffering messages for documents nobody is watching yet.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"orgdocs/backend/internal/apperr"
)

// Message is the status payload delivered to observers.
type Message struct {
	DocID   int64  `json:"doc_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Observer receives status messages for one document. Send returns an error
// when the observer is gone; the registry detaches it and does not re-buffer
// the message.
type Observer interface {
	Send(msg Message) error
}

// Registry tracks at most one active observer per document and an ordered
// buffer of undelivered messages for documents with no observer attached.
// One mutex guards both maps so a flush during Attach is atomic with respect
// to concurrent Notify calls.
type Registry struct {
	mu      sync.Mutex
	active  map[int64]Observer
	pending map[int64][]Message

	// replaceOnAttach selects the second-attach policy: last-writer-wins
	// when true, reject when false.
	replaceOnAttach bool
}

func NewRegistry(replaceOnAttach bool) *Registry {
	return &Registry{
		active:          make(map[int64]Observer),
		pending:         make(map[int64][]Message),
		replaceOnAttach: replaceOnAttach,
	}
}

// Attach registers obs as the active observer for docID, first flushing any
// buffered messages to it in arrival order. A send failure during the flush
// abandons the attach and keeps the undelivered remainder buffered.
func (r *Registry) Attach(docID int64, obs Observer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[docID]; exists && !r.replaceOnAttach {
		return apperr.Newf(apperr.ErrConflict, "observer already attached for document %d", docID)
	}

	buffered := r.pending[docID]
	for i, msg := range buffered {
		if err := obs.Send(msg); err != nil {
			r.pending[docID] = buffered[i:]
			return fmt.Errorf("observer failed during flush for document %d: %w", docID, err)
		}
	}
	delete(r.pending, docID)

	r.active[docID] = obs
	slog.Info("observer attached", "doc_id", docID, "flushed", len(buffered))
	return nil
}

// Detach removes obs if it is still the active observer for docID. The
// identity check keeps a replaced observer's late disconnect from evicting
// its replacement. Buffered messages are untouched; they wait for the next
// attachment.
func (r *Registry) Detach(docID int64, obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[docID] == obs {
		delete(r.active, docID)
		slog.Info("observer detached", "doc_id", docID)
	}
}

// Notify delivers msg to the active observer for msg.DocID, or buffers it
// when none is attached. A failed delivery detaches the observer without
// re-buffering: buffering only covers the never-yet-connected case, and a
// dropped client re-fetches status through the read path.
func (r *Registry) Notify(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obs, ok := r.active[msg.DocID]
	if !ok {
		r.pending[msg.DocID] = append(r.pending[msg.DocID], msg)
		slog.Info("buffered status message", "doc_id", msg.DocID, "status", msg.Status, "buffer_len", len(r.pending[msg.DocID]))
		return
	}

	if err := obs.Send(msg); err != nil {
		slog.Warn("observer gone, detaching", "doc_id", msg.DocID, "error", err)
		delete(r.active, msg.DocID)
	}
}

// PendingCount reports how many messages are buffered for docID.
func (r *Registry) PendingCount(docID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending[docID])
}
