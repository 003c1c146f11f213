package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsqio/go-nsq"

	"orgdocs/backend/features/docs"
	"orgdocs/backend/features/search"
	"orgdocs/backend/features/stats"
	"orgdocs/backend/internal/adapter/gemini"
	"orgdocs/backend/internal/config"
	"orgdocs/backend/internal/document"
	"orgdocs/backend/internal/fetch"
	"orgdocs/backend/internal/ingest"
	"orgdocs/backend/internal/middleware"
	"orgdocs/backend/internal/notify"
	"orgdocs/backend/internal/reconcile"
	"orgdocs/backend/internal/retrieval"
)

type App struct {
	Handler     http.Handler
	DocsService *docs.Service
	Dispatcher  *ingest.Dispatcher
	Registry    *notify.Registry
	Reconciler  *reconcile.Consumer

	cfg      *config.Config
	embedder *gemini.Embedder
}

func New(ctx context.Context, cfg *config.Config, deps *Dependencies) (*App, error) {
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder error: %w", err)
	}

	// Ingestion pipeline
	fetcher := fetch.New(time.Duration(cfg.FetchTimeoutSec) * time.Second)
	worker := ingest.NewWorker(fetcher, pdfExtractor{}, embedder, deps.VectorStore, cfg.ChunkSize, cfg.ChunkOverlap)
	dispatcher, err := ingest.NewDispatcher(cfg.IngestionWorkers, worker, deps.NSQProducer)
	if err != nil {
		return nil, fmt.Errorf("dispatcher error: %w", err)
	}

	// Status notifications
	registry := notify.NewRegistry(cfg.ReplaceObserver)
	sseHandler := notify.NewSSEHandler(registry)

	// Feature: Docs
	docsRepo := docs.NewPostgresRepo(deps.DB)
	docsService := docs.NewService(docsRepo, deps.Cache, dispatcher, deps.VectorStore, time.Duration(cfg.CacheTTL)*time.Second)
	docsHandler := docs.NewHandler(docsService)

	// Feature: Search
	retrievalService := retrieval.NewService(embedder, deps.VectorStore, docsService, cfg.OverfetchFactor)
	searchHandler := search.NewHandler(retrievalService)

	// Feature: Stats
	statsHandler := stats.NewHandler(docsRepo, deps.VectorStore)

	// Reconciler
	reconciler := reconcile.NewConsumer(docsRepo, deps.Cache, registry)

	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(docsHandler.Create)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(docsHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docsHandler.Get)))
	mux.Handle("GET /departments/{id}/documents", middleware.CorrelationID(enableCORS(docsHandler.ListByDepartment)))
	mux.Handle("PUT /documents/{id}/access", middleware.CorrelationID(enableCORS(docsHandler.UpdateAccess)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(docsHandler.Delete)))
	mux.Handle("POST /documents/{id}/reingest", middleware.CorrelationID(enableCORS(docsHandler.Reingest)))

	// SSE stream; CORS middleware is skipped because the handler owns its
	// response headers for the lifetime of the connection.
	mux.Handle("GET /documents/{id}/status/stream", middleware.CorrelationID(sseHandler))

	mux.Handle("POST /search", middleware.CorrelationID(enableCORS(searchHandler.Search)))
	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:     mux,
		DocsService: docsService,
		Dispatcher:  dispatcher,
		Registry:    registry,
		Reconciler:  reconciler,
		cfg:         cfg,
		embedder:    embedder,
	}, nil
}

// Run serves HTTP and consumes terminal ingestion events until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	consumers, err := reconcile.Start(a.cfg, a.Reconciler)
	if err != nil {
		return fmt.Errorf("starting reconciler: %w", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		stopConsumers(consumers)
		a.Dispatcher.Close()
		if err := a.embedder.Close(); err != nil {
			slog.Warn("failed to close embedder", "error", err)
		}
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func stopConsumers(consumers []*nsq.Consumer) {
	for _, c := range consumers {
		c.Stop()
	}
}

// pdfExtractor adapts the package-level parser function to the worker's
// interface.
type pdfExtractor struct{}

func (pdfExtractor) ExtractPages(data []byte) ([]string, error) {
	return document.ExtractPages(data)
}
