package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/paperdeck/researcher/config"
	"github.com/paperdeck/researcher/internal/chunker"
	"github.com/paperdeck/researcher/internal/figure"
	"github.com/paperdeck/researcher/internal/llm"
	"github.com/paperdeck/researcher/internal/service/ingest"
	"github.com/paperdeck/researcher/internal/service/report"
	"github.com/paperdeck/researcher/internal/service/retrieval"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/internal/vectorindex"
	"github.com/paperdeck/researcher/pkg/citeproc"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
	"github.com/paperdeck/researcher/pkg/queue"
	"github.com/paperdeck/researcher/pkg/worker"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.LogLevel),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
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
	formatter := citeproc.New(cfg.Report.PandocPath, citeproc.ExecRunner{})
	reportSvc := report.New(db, retrievalSvc, client, formatter, layout, log)

	q := queue.New(queue.Config{RedisAddr: cfg.Redis.Addr, RedisDB: cfg.Redis.DB})
	defer q.Close()

	workerCfg := &worker.Config{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: cfg.Worker.Concurrency,
		Queues:      cfg.Worker.Queues,
	}
	researchWorker := worker.NewResearchWorker(workerCfg, ingestSvc, reportSvc, q, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := researchWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start worker", logger.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	researchWorker.Stop()
	log.Info("Worker stopped")
}
