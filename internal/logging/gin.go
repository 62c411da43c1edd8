package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/resolv-sh/resolv-gateway/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// SetGinRequestID stores the request id on the gin context.
func SetGinRequestID(c *gin.Context, id string) {
	if c == nil {
		return
	}
	c.Set(requestIDKey, id)
}

// GetGinRequestID returns the request id stored by GinLogger, or "".
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(requestIDKey); ok {
		if s, okString := v.(string); okString {
			return s
		}
	}
	return ""
}

// GinLogger assigns a request id and logs one line per request.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		SetGinRequestID(c, requestID)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      util.MaskSensitiveQuery(c.Request.URL.RawQuery),
			"status":     status,
			"latency":    time.Since(start).String(),
		})
		if status >= 500 {
			entry.Warn("http request")
			return
		}
		entry.Info("http request")
	}
}
