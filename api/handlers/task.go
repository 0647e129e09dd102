package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/queue"
)

// TaskHandler serves report-writing task management and artifacts.
type TaskHandler struct {
	db    *store.Store
	queue *queue.Queue
	log   logger.Logger
}

type createTaskRequest struct {
	UserPrompt string `json:"user_prompt" binding:"required"`
	TaskType   string `json:"task_type" binding:"required"`
}

// Create registers a new task in the queued state. Running it is a
// separate call.
func (h *TaskHandler) Create(c *gin.Context) {
	projectID, err := pathID(c, "projectId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ctx := c.Request.Context()

	if _, err := h.db.GetProject(ctx, projectID); err != nil {
		writeError(c, h.log, err)
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, errs.Validationf("user_prompt and task_type are required"))
		return
	}

	task := &models.Task{
		ProjectID:  projectID,
		TaskType:   req.TaskType,
		UserPrompt: req.UserPrompt,
	}
	if err := h.db.CreateTask(ctx, task); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// List returns a project's tasks.
func (h *TaskHandler) List(c *gin.Context) {
	projectID, err := pathID(c, "projectId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	tasks, err := h.db.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Get returns one task with its current status.
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := pathID(c, "taskId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	task, err := h.db.GetTask(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete removes a task record.
func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "taskId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := h.db.DeleteTask(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Task deleted."})
}

// Run queues the task for execution. A task already mid-run is refused;
// the worker enforces the same rule atomically at start time.
func (h *TaskHandler) Run(c *gin.Context) {
	id, err := pathID(c, "taskId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ctx := c.Request.Context()

	task, err := h.db.GetTask(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if models.StatusInProgress(task.Status) {
		writeError(c, h.log, errs.Conflictf("task is already running"))
		return
	}
	if task.TaskType != models.TaskTypeReport {
		writeError(c, h.log, errs.Validationf("unknown task type %q", task.TaskType))
		return
	}

	if err := h.queue.EnqueueReport(ctx, id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Report generation task started."})
}

// Artifact downloads one of the task's generated artifacts: the outline,
// the markdown body or the final report.
func (h *TaskHandler) Artifact(c *gin.Context) {
	id, err := pathID(c, "taskId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	task, err := h.db.GetTask(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	var content, filename string
	switch artifact := c.Param("artifact"); artifact {
	case "outline":
		if task.OutlineJSON != "" {
			content = prettyJSON(task.OutlineJSON)
			filename = fmt.Sprintf("task_%d_outline.json", task.ID)
		}
	case "markdown":
		if task.MarkdownContent != "" {
			content = task.MarkdownContent
			filename = fmt.Sprintf("task_%d_report.md", task.ID)
		}
	case "report":
		if task.FinalContent != "" {
			content = task.FinalContent
			filename = fmt.Sprintf("task_%d_report.tex", task.ID)
		}
	}
	if content == "" {
		writeError(c, h.log, errs.NotFoundf("artifact not found or not yet generated"))
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/plain", []byte(content))
}

// prettyJSON re-indents stored JSON for download; invalid stored content
// is returned as-is.
func prettyJSON(raw string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(out)
}
