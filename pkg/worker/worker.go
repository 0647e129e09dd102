// Package worker runs the asynq consumer that executes ingestion and
// report-writing jobs.
package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/paperdeck/researcher/pkg/logger"
)

// Config holds broker and concurrency settings for the consumer.
type Config struct {
	RedisAddr   string
	RedisDB     int
	Concurrency int
	Queues      map[string]int
}

// BaseWorker owns the asynq server lifecycle shared by concrete workers.
type BaseWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    logger.Logger
}

func newBase(cfg *Config, log logger.Logger) BaseWorker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)
	return BaseWorker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// Start runs the server until ctx is cancelled.
func (w *BaseWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.log.Error("worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

// Stop shuts the server down, letting in-flight tasks finish.
func (w *BaseWorker) Stop() {
	w.server.Stop()
	w.server.Shutdown()
}
