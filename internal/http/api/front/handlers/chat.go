package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/chat"
	"github.com/resolv-sh/resolv-gateway/internal/logging"
	"github.com/resolv-sh/resolv-gateway/internal/metrics"
	"github.com/resolv-sh/resolv-gateway/internal/relay"
	log "github.com/sirupsen/logrus"
)

// statusClientClosedRequest is sent when the caller left before the upstream
// answered. Nothing reads it; it marks the outcome in access logs.
const statusClientClosedRequest = 499

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Stream relays one completion as server-sent events.
func (h *ChatHandler) Stream(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body chat.Request
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	requestID := logging.GetGinRequestID(c)
	prepared, errPrepare := h.svc.Prepare(userID, requestID, body)
	switch {
	case errors.Is(errPrepare, chat.ErrInvalidModel):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model ID"})
		return
	case errPrepare != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": errPrepare.Error()})
		return
	}

	ctx := c.Request.Context()
	upstream, errOpen := h.svc.Open(ctx, prepared)
	if errOpen != nil && (errors.Is(errOpen, relay.ErrClientGone) || ctx.Err() != nil) {
		metrics.ChatRequests.WithLabelValues("client_gone").Inc()
		log.WithField("request_id", requestID).Debug("chat: client disconnected before upstream responded")
		c.AbortWithStatus(statusClientClosedRequest)
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	sink := relay.NewSSEWriter(c.Writer)

	if errOpen != nil {
		log.WithError(errOpen).WithFields(log.Fields{
			"request_id": requestID,
			"model":      prepared.ModelID,
		}).Error("chat: upstream request failed")
		chat.ReportUpstreamError(sink, errOpen)
		return
	}
	h.svc.Stream(ctx, prepared, upstream, sink)
}
