package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ifion/MedSystem-sub000/internal/auth"
	"github.com/ifion/MedSystem-sub000/internal/model"
	"github.com/ifion/MedSystem-sub000/internal/repo"
	"github.com/ifion/MedSystem-sub000/internal/service"
)

// MessageHandler is the REST surface over the delivery engine. Creating
// a message here stores it only; announcing it over the socket is the
// client's next step.
type MessageHandler interface {
	CreateMessage(c *gin.Context)
	GetHistory(c *gin.Context)
	EditMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	RestoreMessage(c *gin.Context)
	RetryMessage(c *gin.Context)
}

type messageHandler struct {
	service service.MessageService
}

func NewMessageHandler(service service.MessageService) MessageHandler {
	return &messageHandler{service: service}
}

func (h *messageHandler) CreateMessage(c *gin.Context) {
	var in model.SendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	msg, err := h.service.Send(c.Request.Context(), auth.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *messageHandler) GetHistory(c *gin.Context) {
	peerID := c.Param("peerId")
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
		return
	}

	msgs, err := h.service.History(c.Request.Context(), auth.UserID(c), peerID, page)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *messageHandler) EditMessage(c *gin.Context) {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	msg, err := h.service.Edit(c.Request.Context(), c.Param("id"), auth.UserID(c), body.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *messageHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.service.SoftDelete(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *messageHandler) RestoreMessage(c *gin.Context) {
	msg, err := h.service.UndoDelete(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *messageHandler) RetryMessage(c *gin.Context) {
	msg, err := h.service.Retry(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// respondError maps the service error taxonomy onto status codes with a
// machine-readable reason.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
	case errors.Is(err, service.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "not_authorized"})
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found", "code": "not_found"})
	case errors.Is(err, service.ErrNotFailed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "not_failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
	}
}
