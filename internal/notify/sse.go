package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"orgdocs/backend/internal/apperr"
)

// channelObserver bridges the registry to an SSE stream. The buffered
// channel keeps Notify from blocking on a slow client; a full channel counts
// as a gone observer.
type channelObserver struct {
	ch chan Message
}

func (o *channelObserver) Send(msg Message) error {
	select {
	case o.ch <- msg:
		return nil
	default:
		return fmt.Errorf("observer channel full")
	}
}

// SSEHandler serves GET /documents/{id}/status/stream, attaching the client
// as the document's observer for the lifetime of the connection.
type SSEHandler struct {
	registry *Registry
}

func NewSSEHandler(registry *Registry) *SSEHandler {
	return &SSEHandler{registry: registry}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	docID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	obs := &channelObserver{ch: make(chan Message, 100)}
	if err := h.registry.Attach(docID, obs); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			http.Error(w, "observer already attached", http.StatusConflict)
			return
		}
		slog.Error("failed to attach observer", "doc_id", docID, "error", err)
		http.Error(w, "failed to attach observer", http.StatusInternalServerError)
		return
	}
	defer h.registry.Detach(docID, obs)

	slog.Info("status stream opened", "doc_id", docID)
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-obs.ch:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("failed to marshal status message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			// Keep-alive comment prevents proxy timeouts.
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("status stream closed", "doc_id", docID)
			return
		}
	}
}
