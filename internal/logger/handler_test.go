package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"orgdocs/backend/internal/middleware"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := middleware.WithCorrelationID(context.Background(), "corr-42")
	log.InfoContext(ctx, "status updated", "doc_id", 42)

	assert.Contains(t, buf.String(), `"correlation_id":"corr-42"`)
	assert.Contains(t, buf.String(), `"doc_id":42`)
}

func TestContextHandler_NoCorrelation(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	log.InfoContext(context.Background(), "status updated")

	assert.NotContains(t, buf.String(), "correlation_id")
}
