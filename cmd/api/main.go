package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/knowledge-agents/internal/adapters/http"
	"github.com/kirillkom/knowledge-agents/internal/bootstrap"
	"github.com/kirillkom/knowledge-agents/internal/config"
	"github.com/kirillkom/knowledge-agents/internal/observability/logging"
	"github.com/kirillkom/knowledge-agents/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logging.Setup("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if err := app.CorpusUC.Rebuild(ctx); err != nil {
		log.Fatalf("build lexical index: %v", err)
	}

	// Each API instance rebuilds its own in-process index whenever the
	// worker reports a corpus change.
	go func() {
		err := app.Queue.SubscribeCorpusUpdated(ctx, func(handlerCtx context.Context, documentID string) error {
			slog.Info("corpus_reindex", "document_id", documentID)
			return app.CorpusUC.Rebuild(handlerCtx)
		})
		if err != nil {
			slog.Error("corpus_subscription_failed", "error", err)
		}
	}()

	router := httpadapter.NewRouter(
		cfg,
		app.IngestUC,
		app.QueryUC,
		app.Repo,
		app.Runs,
		metrics.NewHTTPServerMetrics("api"),
	).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
