package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/LiveChat/internal/protocol"
	"github.com/Gopher0727/LiveChat/internal/service"
	logger "github.com/Gopher0727/LiveChat/middleware/log"
)

type MessageHandler struct {
	messageService service.IMessageService
	log            *logger.Logger
}

func NewMessageHandler(messageService service.IMessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		log:            log,
	}
}

// ListMessages returns the full history, oldest first.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	messages, err := h.messageService.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// CreateMessage stores a message and broadcasts it to every other subscriber.
// The X-Socket-ID header names the caller's own gateway connection.
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req service.CreateMessageRequest
	// An empty body is an empty request: validation reports the missing fields.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	msg, err := h.messageService.Create(c.Request.Context(), req, c.GetHeader(protocol.SocketIDHeader))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": verr.Message(),
			"errors":  verr.Fields,
		})
	case errors.Is(err, service.ErrStoreUnavailable):
		_ = c.Error(err)
		h.log.WarnContext(c.Request.Context(), "message store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message store unavailable"})
	default:
		_ = c.Error(err)
		h.log.ErrorContext(c.Request.Context(), "unexpected message service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
