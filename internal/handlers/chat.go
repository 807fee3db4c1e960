package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ahmedit-11/artfolio-chat/internal/chat"
	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/repositories"
	"github.com/ahmedit-11/artfolio-chat/internal/session"
)

// ChatHandler manages the conversation endpoints.
type ChatHandler struct {
	svc     *chat.Service
	manager *session.Manager
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(svc *chat.Service, manager *session.Manager) *ChatHandler {
	return &ChatHandler{svc: svc, manager: manager}
}

// ListConversations returns the authenticated user's aggregated conversation
// list: profiles resolved, sorted by recency, unread counts attached.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	sess, err := h.manager.Acquire(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	defer h.manager.Release(userID)

	state := sess.State()
	c.JSON(http.StatusOK, gin.H{"conversations": state.Conversations})
}

// StartChat opens (or reuses) the conversation with another user and selects
// it for the caller's session.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	sess, err := h.manager.Acquire(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start chat"})
		return
	}
	defer h.manager.Release(userID)

	chatID, err := sess.StartChat(c.Request.Context(), req.UserID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrSelfChat) || errors.Is(err, chat.ErrEmptyUserID) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chatID})
}

// GetMessages returns the full ordered message thread of a conversation.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")
	if !models.IsParticipant(chatID, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return
	}

	msgs, err := h.svc.Messages(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage appends a message to the conversation and returns the stored
// record with its server-assigned timestamp.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.AppendMessage(c.Request.Context(), chatID, userID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, chat.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkRead zeroes the caller's unread counter for the conversation.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	if err := h.svc.MarkRead(c.Request.Context(), chatID, userID); err != nil {
		if errors.Is(err, chat.ErrNotParticipant) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}

	c.Status(http.StatusNoContent)
}

// SetTyping publishes the caller's typing flag for the conversation.
func (h *ChatHandler) SetTyping(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")

	var req struct {
		IsTyping bool `json:"is_typing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetTyping(c.Request.Context(), chatID, userID, req.IsTyping); err != nil {
		if errors.Is(err, chat.ErrNotParticipant) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set typing"})
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteConversation removes the conversation, its messages and typing flags.
// Irreversible.
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	chatID := c.Param("chat_id")
	userID := c.GetString("userID")
	if !models.IsParticipant(chatID, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return
	}

	if err := h.svc.DeleteConversation(c.Request.Context(), chatID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete conversation"})
		return
	}

	c.Status(http.StatusNoContent)
}
