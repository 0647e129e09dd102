package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
)

// ProjectHandler serves project CRUD and project-level downloads.
type ProjectHandler struct {
	db     *store.Store
	layout *paths.Layout
	log    logger.Logger
}

type createProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create makes a new project and its data directory.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, errs.Validationf("project name is required"))
		return
	}

	project, err := h.db.CreateProject(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if _, err := h.layout.EnsureProjectDir(project.ID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// List returns all projects.
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.db.ListProjects(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Get returns one project with its documents and conversations.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := pathID(c, "projectId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ctx := c.Request.Context()

	project, err := h.db.GetProject(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	documents, err := h.db.ListDocuments(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	conversations, err := h.db.ListConversations(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	convos := make([]gin.H, 0, len(conversations))
	for _, conv := range conversations {
		messages, err := h.db.ListMessages(ctx, conv.ID)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		convos = append(convos, gin.H{
			"id":       conv.ID,
			"title":    conv.Title,
			"messages": messages,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            project.ID,
		"name":          project.Name,
		"documents":     documents,
		"conversations": convos,
	})
}

// Delete removes a project, everything it owns in the database and its
// whole data directory.
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "projectId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if err := h.db.DeleteProject(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := h.layout.RemoveProject(id); err != nil {
		h.log.Warn("removing project data dir failed",
			logger.Int64("projectId", id),
			logger.Error(err),
		)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Bibliography serves the project's combined BibTeX entries as a .bib
// download.
func (h *ProjectHandler) Bibliography(c *gin.Context) {
	id, err := pathID(c, "projectId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ctx := c.Request.Context()

	project, err := h.db.GetProject(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	documents, err := h.db.ListDocuments(ctx, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	entries := make([]string, 0, len(documents))
	for _, doc := range documents {
		if doc.BibEntry != "" {
			entries = append(entries, doc.BibEntry)
		}
	}
	if len(entries) == 0 {
		writeError(c, h.log, errs.NotFoundf("no BibTeX entries found for this project"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename=`+sanitizeFilename(project.Name)+".bib")
	c.Data(http.StatusOK, "application/x-bibtex", []byte(strings.Join(entries, "\n\n")))
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validationf("invalid %s", name)
	}
	return id, nil
}

// sanitizeFilename keeps download filenames to a safe character set.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, name)
}
