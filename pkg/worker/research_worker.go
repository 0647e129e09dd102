package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/paperdeck/researcher/internal/service/ingest"
	"github.com/paperdeck/researcher/internal/service/report"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/queue"
)

// ResearchWorker consumes ingestion and report-writing tasks.
type ResearchWorker struct {
	BaseWorker
	ingest  *ingest.Service
	reports *report.Service
	status  *queue.Queue
}

// NewResearchWorker wires up the consumer and registers its handlers.
func NewResearchWorker(cfg *Config, ingestSvc *ingest.Service, reportSvc *report.Service, status *queue.Queue, log logger.Logger) *ResearchWorker {
	w := &ResearchWorker{
		BaseWorker: newBase(cfg, log.Named("worker")),
		ingest:     ingestSvc,
		reports:    reportSvc,
		status:     status,
	}
	w.mux.HandleFunc(queue.TaskTypeDocumentIngest, w.handleIngest)
	w.mux.HandleFunc(queue.TaskTypeReportWrite, w.handleReport)
	return w
}

func (w *ResearchWorker) handleIngest(ctx context.Context, t *asynq.Task) error {
	var p queue.IngestPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal ingest payload: %w", err)
	}

	w.log.Info("processing document ingestion",
		logger.String("jobId", p.JobID),
		logger.Int64("projectId", p.ProjectID),
		logger.String("filename", p.Filename),
	)

	w.saveStatus(ctx, &queue.IngestStatus{
		JobID: p.JobID, ProjectID: p.ProjectID, Filename: p.Filename, Status: "processing",
	})

	doc, err := w.ingest.Process(ctx, p.ProjectID, p.Filename, p.DocumentType)
	if err != nil {
		w.saveStatus(ctx, &queue.IngestStatus{
			JobID: p.JobID, ProjectID: p.ProjectID, Filename: p.Filename,
			Status: "failed", Error: err.Error(),
		})
		return err
	}

	w.saveStatus(ctx, &queue.IngestStatus{
		JobID: p.JobID, ProjectID: p.ProjectID, Filename: p.Filename,
		Status: "complete", DocumentID: doc.ID,
	})
	return nil
}

// handleReport always returns nil: the report service records failure in
// the task row itself, and asynq must not retry or dead-letter on top of
// that.
func (w *ResearchWorker) handleReport(ctx context.Context, t *asynq.Task) error {
	var p queue.ReportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal report payload: %w", err)
	}

	w.log.Info("running report task", logger.Int64("taskId", p.TaskID))
	if err := w.reports.Run(ctx, p.TaskID); err != nil {
		w.log.Error("report task run failed",
			logger.Int64("taskId", p.TaskID),
			logger.Error(err),
		)
	}
	return nil
}

func (w *ResearchWorker) saveStatus(ctx context.Context, status *queue.IngestStatus) {
	if err := w.status.SaveIngestStatus(ctx, status); err != nil {
		w.log.Warn("saving ingest status failed",
			logger.String("jobId", status.JobID),
			logger.Error(err),
		)
	}
}
