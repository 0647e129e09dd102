package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paperdeck/researcher/internal/models"
	"github.com/paperdeck/researcher/internal/service/retrieval"
	"github.com/paperdeck/researcher/internal/store"
	"github.com/paperdeck/researcher/pkg/errs"
	"github.com/paperdeck/researcher/pkg/logger"
)

// ConversationHandler serves conversation CRUD and the ask endpoint.
type ConversationHandler struct {
	db        *store.Store
	retrieval *retrieval.Service
	log       logger.Logger
}

type createConversationRequest struct {
	Title string `json:"title"`
}

// Create starts an empty conversation in a project.
func (h *ConversationHandler) Create(c *gin.Context) {
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

	var req createConversationRequest
	_ = c.ShouldBindJSON(&req)

	conv, err := h.db.CreateConversation(ctx, projectID, req.Title)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       conv.ID,
		"title":    conv.Title,
		"messages": []models.Message{},
	})
}

// Delete removes a conversation and its messages.
func (h *ConversationHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "conversationId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := h.db.DeleteConversation(c.Request.Context(), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation deleted."})
}

type askRequest struct {
	Question       string `json:"question" binding:"required"`
	ConversationID int64  `json:"conversation_id" binding:"required"`
}

// Ask answers a question over the project's documents and records the
// exchange in the conversation.
func (h *ConversationHandler) Ask(c *gin.Context) {
	projectID, err := pathID(c, "projectId")
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	ctx := c.Request.Context()

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.log, errs.Validationf("question and conversation_id are required"))
		return
	}

	if _, err := h.db.GetProject(ctx, projectID); err != nil {
		writeError(c, h.log, err)
		return
	}
	conv, err := h.db.GetConversation(ctx, req.ConversationID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	answer, err := h.retrieval.Answer(ctx, projectID, req.Question)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	userMsg := &models.Message{ConversationID: conv.ID, Role: "user", Content: req.Question}
	assistantMsg := &models.Message{ConversationID: conv.ID, Role: "assistant", Content: answer}
	if err := h.db.AddMessage(ctx, userMsg); err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := h.db.AddMessage(ctx, assistantMsg); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":            answer,
		"user_message":      userMsg,
		"assistant_message": assistantMsg,
	})
}
