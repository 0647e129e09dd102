package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/internal/service/ingest"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
	"github.com/paperdeck/researcher/pkg/queue"
)

// DocumentHandler serves document upload, deletion and figure access.
type DocumentHandler struct {
	db     *store.Store
	ingest *ingest.Service
	queue  *queue.Queue
	layout *paths.Layout
	log    logger.Logger
}

// Upload stores the uploaded file under the project's data directory and
// queues ingestion. The response carries the job ID to poll.
func (h *DocumentHandler) Upload(c *gin.Context) {
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

	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, h.log, errs.Validationf("no file part"))
		return
	}
	filename := filepath.Base(file.Filename)
	if filename == "" || filename == "." {
		writeError(c, h.log, errs.Validationf("no selected file"))
		return
	}

	docType := models.DocumentType(c.PostForm("type"))
	if docType != models.JournalArticle {
		docType = models.Generic
	}

	if _, err := h.layout.EnsureProjectDir(projectID); err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := c.SaveUploadedFile(file, h.layout.SourcePath(projectID, filename)); err != nil {
		writeError(c, h.log, err)
		return
	}

	jobID, err := h.queue.EnqueueIngest(ctx, projectID, filename, docType)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":    jobID,
		"filename": filename,
		"status":   "queued",
	})
}

// IngestStatus reports the state of a queued ingestion job.
func (h *DocumentHandler) IngestStatus(c *gin.Context) {
	jobID := c.Param("jobId")
	status, err := h.queue.GetIngestStatus(c.Request.Context(), jobID)
	if err != nil {
		if err == queue.ErrStatusNotFound {
			writeError(c, h.log, errs.NotFoundf("ingest job %s", jobID))
			return
		}
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Delete removes a document, its files and figures, and rebuilds the
// project's vector index.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "documentId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if err := h.ingest.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Document and all associated files deleted; index rebuilt.",
	})
}

// Figures lists a document's analyzed figures.
func (h *DocumentHandler) Figures(c *gin.Context) {
	id, err := pathID(c, "documentId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ctx := c.Request.Context()

	if _, err := h.db.GetDocument(ctx, id); err != nil {
		writeError(c, h.log, err)
		return
	}
	figures, err := h.db.ListFiguresByDocument(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, figures)
}

// FigureImage serves a rendered figure image from the project's data
// directory. The wildcard path is confined to that directory.
func (h *DocumentHandler) FigureImage(c *gin.Context) {
	projectID, err := pathID(c, "projectId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	// Gin wildcard params keep their leading slash.
	rel := filepath.Clean(strings.TrimPrefix(c.Param("filepath"), "/"))
	if rel == "." || rel == ".." || filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		writeError(c, h.log, errs.Validationf("invalid figure path"))
		return
	}
	c.File(filepath.Join(h.layout.ProjectDir(projectID), rel))
}
