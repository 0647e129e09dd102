package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/pkg/errs"
)

// CreateTask inserts a queued task and fills in its assigned ID.
func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	if t.Status == "" {
		t.Status = models.StatusQueued
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (project_id, task_type, user_prompt, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ProjectID, t.TaskType, t.UserPrompt, t.Status, t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	return nil
}

// GetTask fetches one task by ID.
func (s *Store) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, task_type, user_prompt, status, status_message,
		        outline_json, markdown_content, final_content, created_at
		 FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("task %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select task: %w", err)
	}
	return t, nil
}

// ListTasks returns a project's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, task_type, user_prompt, status, status_message,
		        outline_json, markdown_content, final_content, created_at
		 FROM tasks WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteTask removes a task record.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("task %d", id)
	}
	return nil
}

// StartTask atomically moves a task into its first running status. It
// refuses, with ErrStateConflict, when the task is already mid-run, so two
// workers can never execute the same task concurrently. Restarting a
// complete or failed task is allowed and begins a fresh run.
func (s *Store) StartTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET status = ?, status_message = ''
		 WHERE id = ?
		   AND status NOT IN (?, ?, ?)
		   AND status NOT LIKE 'writing_section_%'`,
		models.StatusGatheringContext, id,
		models.StatusGatheringContext, models.StatusGeneratingOutline, models.StatusAssemblingReport,
	)
	if err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTask(ctx, id); err != nil {
			return err
		}
		return errs.Conflictf("task %d is already running", id)
	}
	return nil
}

// SetTaskStatus records a status transition, with an optional
// human-readable message (used for failure causes).
func (s *Store) SetTaskStatus(ctx context.Context, id int64, status, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, status_message = ? WHERE id = ?`,
		status, message, id,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("task %d", id)
	}
	return nil
}

// SetTaskOutline persists the generated outline as soon as it parses, so
// it survives any later failure.
func (s *Store) SetTaskOutline(ctx context.Context, id int64, outlineJSON string) error {
	return s.setTaskField(ctx, id, "outline_json", outlineJSON)
}

// SetTaskMarkdown persists the assembled markdown report body.
func (s *Store) SetTaskMarkdown(ctx context.Context, id int64, markdown string) error {
	return s.setTaskField(ctx, id, "markdown_content", markdown)
}

// SetTaskFinal persists the formatter's output with resolved citations.
func (s *Store) SetTaskFinal(ctx context.Context, id int64, final string) error {
	return s.setTaskField(ctx, id, "final_content", final)
}

func (s *Store) setTaskField(ctx context.Context, id int64, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("update task %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFoundf("task %d", id)
	}
	return nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var created int64
	err := row.Scan(&t.ID, &t.ProjectID, &t.TaskType, &t.UserPrompt, &t.Status,
		&t.StatusMessage, &t.OutlineJSON, &t.MarkdownContent, &t.FinalContent, &created)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(created, 0).UTC()
	return &t, nil
}
