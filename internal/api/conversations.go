package api

import (
	"net/http"
	"strconv"
	"time"

	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	Store *store.Store
}

func NewConversationHandler(s *store.Store) *ConversationHandler {
	return &ConversationHandler{Store: s}
}

// GetConversations handles GET /api/conversations?number_id=&status=&limit=&offset=
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	conversations, err := h.Store.ListConversations(c.Request.Context(), workspaceID(c), store.ConversationFilter{
		NumberID: c.Query("number_id"),
		Status:   c.Query("status"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		storeError(c, err, "conversations")
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// GetMessages handles GET /api/conversations/:id/messages?before=&limit=
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	conv, err := h.Store.Conversation(ctx, workspaceID(c), c.Param("id"))
	if err != nil {
		storeError(c, err, "conversation")
		return
	}

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
			return
		}
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := h.Store.ListMessages(ctx, workspaceID(c), conv.ID, before, limit)
	if err != nil {
		storeError(c, err, "messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

// MarkRead handles POST /api/conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	if err := h.Store.MarkConversationRead(c.Request.Context(), workspaceID(c), c.Param("id")); err != nil {
		storeError(c, err, "conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Conversation marked read"})
}

type UpdateConversationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open closed pending"`
}

// UpdateStatus handles PUT /api/conversations/:id/status
func (h *ConversationHandler) UpdateStatus(c *gin.Context) {
	var req UpdateConversationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Store.SetConversationStatus(c.Request.Context(), workspaceID(c), c.Param("id"), req.Status); err != nil {
		storeError(c, err, "conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Conversation " + req.Status})
}
