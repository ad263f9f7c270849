package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type streamEventPayload struct {
	Books             []string `json:"books"`
	ChaptersReadCount int      `json:"chapters_read_count"`
	TimestampSeconds  int64    `json:"timestamp_s"`
}

// handleProgressStream serves a server-sent-event feed of the caller's
// progress changes. EventSource cannot set request headers, so the session
// token arrives as a query parameter instead of the Authorization header.
func (h *httpHandler) handleProgressStream(c *gin.Context) {
	token := strings.TrimSpace(c.Query("access_token"))
	if token == "" {
		header := c.GetHeader("Authorization")
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}

	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("stream token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cleanup := h.realtime.Subscribe(c.Request.Context(), subject)
	defer cleanup()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case message, open := <-stream:
			if !open {
				return
			}
			data, err := json.Marshal(streamEventPayload{
				Books:             message.Books,
				ChaptersReadCount: message.ChaptersReadCount,
				TimestampSeconds:  message.Timestamp.Unix(),
			})
			if err != nil {
				h.logger.Error("failed to encode stream event", zap.Error(err))
				continue
			}
			if _, err := c.Writer.WriteString("event: " + message.EventType + "\n"); err != nil {
				return
			}
			if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
