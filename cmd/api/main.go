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

	httpadapter "github.com/jungujeong/GovRAG-sub000/internal/adapters/http"
	"github.com/jungujeong/GovRAG-sub000/internal/bootstrap"
	"github.com/jungujeong/GovRAG-sub000/internal/config"
	"github.com/jungujeong/GovRAG-sub000/internal/core/domain"
	"github.com/jungujeong/GovRAG-sub000/internal/observability/logging"
	"github.com/jungujeong/GovRAG-sub000/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// The api answers turns from a process-local index replica, kept in
	// step by consuming every chunk batch on the stream.
	go func() {
		err := app.Queue.SubscribeChunkBatchFanout(ctx, func(handlerCtx context.Context, batch domain.ChunkBatch) error {
			indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()
			return app.Replica.IngestBatch(indexCtx, batch)
		})
		if err != nil && ctx.Err() == nil {
			log.Fatalf("index replica subscribe error: %v", err)
		}
	}()

	router := httpadapter.NewRouter(app.Resolver, app.Sessions, app.Registry, app.Queue, httpadapter.RouterOptions{
		RecentMessages:     cfg.SessionRecentMessages,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		Metrics:            metrics.NewHTTPServerMetrics("api"),
	})
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
