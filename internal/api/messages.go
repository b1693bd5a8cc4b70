package api

import (
	"errors"
	"net/http"

	"whatsapp-crm/internal/dispatch"
	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/whatsapp"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	Dispatcher *dispatch.Dispatcher
	log        *logging.Logger
}

func NewMessageHandler(d *dispatch.Dispatcher, log *logging.Logger) *MessageHandler {
	return &MessageHandler{Dispatcher: d, log: log}
}

// SendMessage handles POST /api/messages/send
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req dispatch.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Dispatcher.Send(c.Request.Context(), workspaceID(c), req)
	if err != nil {
		status, body := sendFailure(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("workspace_id", workspaceID(c)).Msg("send failed")
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, res)
}

func sendFailure(err error) (int, gin.H) {
	var (
		verr *dispatch.ValidationError
		perr *dispatch.ProviderError
		terr *dispatch.TransportError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field}
	case errors.Is(err, dispatch.ErrNumberNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, dispatch.ErrNumberUnavailable):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.As(err, &perr):
		status := http.StatusBadRequest
		if perr.Category == whatsapp.CategoryRateLimited {
			status = http.StatusTooManyRequests
		}
		return status, gin.H{"error": perr.Message, "category": perr.Category, "code": perr.Code}
	case errors.As(err, &terr):
		return http.StatusBadGateway, gin.H{"error": "WhatsApp is not reachable right now. Try again shortly."}
	default:
		return http.StatusInternalServerError, gin.H{"error": "failed to send message"}
	}
}
