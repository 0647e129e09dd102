// Package handlers implements the HTTP API over the project, document,
// conversation and task services.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperdeck/researcher/internal/service/ingest"
	"github.com/paperdeck/researcher/internal/service/retrieval"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
	"github.com/paperdeck/researcher/pkg/paths"
	"github.com/paperdeck/researcher/pkg/queue"
)

// Handlers groups the API's handler sets.
type Handlers struct {
	Project      *ProjectHandler
	Document     *DocumentHandler
	Conversation *ConversationHandler
	Task         *TaskHandler
}

// NewHandlers wires up every handler set.
func NewHandlers(
	db *store.Store,
	ingestSvc *ingest.Service,
	retrievalSvc *retrieval.Service,
	q *queue.Queue,
	layout *paths.Layout,
	log logger.Logger,
) *Handlers {
	log = log.Named("api")
	return &Handlers{
		Project:      &ProjectHandler{db: db, layout: layout, log: log},
		Document:     &DocumentHandler{db: db, ingest: ingestSvc, queue: q, layout: layout, log: log},
		Conversation: &ConversationHandler{db: db, retrieval: retrievalSvc, log: log},
		Task:         &TaskHandler{db: db, queue: q, log: log},
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError maps service error kinds onto HTTP status codes.
func writeError(c *gin.Context, log logger.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrStateConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrUpstream):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed",
			logger.String("path", c.Request.URL.Path),
			logger.Error(err),
		)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
