// Package routes maps the HTTP API onto the handlers.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/paperdeck/researcher/api/handlers"
	"github.com/paperdeck/researcher/api/middleware"
)

// SetupRoutes registers every endpoint on the engine.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	api := r.Group("/api")

	projects := api.Group("/projects")
	{
		projects.POST("", h.Project.Create)
		projects.GET("", h.Project.List)
		projects.GET("/:projectId", h.Project.Get)
		projects.DELETE("/:projectId", h.Project.Delete)
		projects.GET("/:projectId/bibtex", h.Project.Bibliography)

		projects.POST("/:projectId/documents", h.Document.Upload)
		projects.GET("/:projectId/figures/*filepath", h.Document.FigureImage)

		projects.POST("/:projectId/conversations", h.Conversation.Create)
		projects.POST("/:projectId/ask", h.Conversation.Ask)

		projects.GET("/:projectId/tasks", h.Task.List)
		projects.POST("/:projectId/tasks", h.Task.Create)
	}

	api.GET("/ingest/:jobId", h.Document.IngestStatus)

	documents := api.Group("/documents")
	{
		documents.DELETE("/:documentId", h.Document.Delete)
		documents.GET("/:documentId/figures", h.Document.Figures)
	}

	api.DELETE("/conversations/:conversationId", h.Conversation.Delete)

	tasks := api.Group("/tasks")
	{
		tasks.GET("/:taskId", h.Task.Get)
		tasks.DELETE("/:taskId", h.Task.Delete)
		tasks.POST("/:taskId/run", h.Task.Run)
		tasks.GET("/:taskId/artifacts/:artifact", h.Task.Artifact)
	}
}
