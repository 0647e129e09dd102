package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paperdeck/researcher/api/handlers"
	"github.com/paperdeck/researcher/api/routes"
	"github.com/paperdeck/researcher/config"
	"github.com/paperdeck/researcher/internal/chunker"
	"github.com/paperdeck/researcher/internal/figure"
	"github.com/paperdeck/researcher/internal/llm"
	"github.com/paperdeck/researcher/internal/service/ingest"
	"github.com/paperdeck/researcher/internal/service/retrieval"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/internal/vectorindex"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
	"github.com/paperdeck/researcher/pkg/queue"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database", logger.Error(err))
	}
	defer db.Close()

	layout := paths.New(cfg.DataDir)
	vectors := vectorindex.NewStore(layout, log)
	client := llm.NewOllama(cfg.Ollama)
	chunks := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)

	extractor := figure.NewExtractor(
		figure.NewPDFScanner(log),
		figure.NewPopplerRenderer(cfg.Figure.PdftoppmPath, cfg.Figure.RenderDPI),
		client,
		layout,
		log,
	)

	ingestSvc := ingest.New(db, vectors, client, chunks, extractor, layout, log)
	retrievalSvc := retrieval.New(db, vectors, client, cfg.Retrieval.TopK, log)

	q := queue.New(queue.Config{RedisAddr: cfg.Redis.Addr, RedisDB: cfg.Redis.DB})
	defer q.Close()

	h := handlers.NewHandlers(db, ingestSvc, retrievalSvc, q, layout, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
