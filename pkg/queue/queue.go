// Package queue wraps asynq for background task dispatch and keeps a
// short-lived ingestion status cache in redis for the API to poll.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/paperdeck/researcher/internal/models"
)

// Task types routed through the broker.
const (
	TaskTypeDocumentIngest = "document:ingest"
	TaskTypeReportWrite    = "report:write"
)

const ingestStatusTTL = 24 * time.Hour

// IngestPayload carries one document ingestion job.
type IngestPayload struct {
	JobID        string              `json:"jobId"`
	ProjectID    int64               `json:"projectId"`
	Filename     string              `json:"filename"`
	DocumentType models.DocumentType `json:"documentType"`
}

// ReportPayload carries one report-writing job; the task row in the
// relational store holds all further state.
type ReportPayload struct {
	TaskID int64 `json:"taskId"`
}

// IngestStatus is the API-visible state of an ingestion job.
type IngestStatus struct {
	JobID      string `json:"jobId"`
	ProjectID  int64  `json:"projectId"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DocumentID int64  `json:"documentId,omitempty"`
}

// ErrStatusNotFound is returned when an ingestion job is unknown or its
// status has expired from the cache.
var ErrStatusNotFound = errors.New("ingest status not found")

// Config holds broker connection settings.
type Config struct {
	RedisAddr string
	RedisDB   int
}

// Queue produces background tasks and tracks ingestion status.
type Queue struct {
	client *asynq.Client
	redis  *redis.Client
}

// New connects the producer side of the broker.
func New(cfg Config) *Queue {
	return &Queue{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		redis:  redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
	}
}

// Close releases broker connections.
func (q *Queue) Close() error {
	cerr := q.client.Close()
	if err := q.redis.Close(); err != nil {
		return err
	}
	return cerr
}

// EnqueueIngest queues a document ingestion job and records its queued
// status. Returns the job ID the API hands back to the caller.
func (q *Queue) EnqueueIngest(ctx context.Context, projectID int64, filename string, docType models.DocumentType) (string, error) {
	p := IngestPayload{
		JobID:        uuid.New().String(),
		ProjectID:    projectID,
		Filename:     filename,
		DocumentType: docType,
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal ingest payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeDocumentIngest, payload,
		asynq.TaskID(p.JobID),
		asynq.Queue("default"),
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
	)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue ingest task: %w", err)
	}

	status := &IngestStatus{JobID: p.JobID, ProjectID: projectID, Filename: filename, Status: "queued"}
	if err := q.SaveIngestStatus(ctx, status); err != nil {
		return "", err
	}
	return p.JobID, nil
}

// EnqueueReport queues a report-writing job. Retries are disabled: the
// task state machine records its own failure and a blind retry would
// collide with the already-running-status refusal.
func (q *Queue) EnqueueReport(ctx context.Context, taskID int64) error {
	payload, err := json.Marshal(ReportPayload{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("marshal report payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeReportWrite, payload,
		asynq.TaskID(fmt.Sprintf("report-%d-%s", taskID, uuid.New().String())),
		asynq.Queue("low"),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Hour),
	)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue report task: %w", err)
	}
	return nil
}

// SaveIngestStatus writes a job's status to the cache with a TTL.
func (q *Queue) SaveIngestStatus(ctx context.Context, status *IngestStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal ingest status: %w", err)
	}
	key := ingestStatusKey(status.JobID)
	if err := q.redis.Set(ctx, key, data, ingestStatusTTL).Err(); err != nil {
		return fmt.Errorf("save ingest status: %w", err)
	}
	return nil
}

// GetIngestStatus reads a job's cached status.
func (q *Queue) GetIngestStatus(ctx context.Context, jobID string) (*IngestStatus, error) {
	data, err := q.redis.Get(ctx, ingestStatusKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ingest status: %w", err)
	}
	var status IngestStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshal ingest status: %w", err)
	}
	return &status, nil
}

func ingestStatusKey(jobID string) string {
	return "ingest_status:" + jobID
}
