package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sortcheck/models"
)

// EventSource hands out progress subscriptions.
type EventSource interface {
	Subscribe() (<-chan models.ProgressEvent, func())
}

// Events returns a handler for GET /api/v1/events. It streams every
// progress event as Server-Sent Events named after the event type, with a
// comment heartbeat so idle proxies keep the connection open.
func Events(src EventSource, heartbeat time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, cancel := src.Subscribe()
		defer cancel()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.Writer.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case ev, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(ev.Type, ev)
				return true
			case <-ticker.C:
				_, err := io.WriteString(w, ": ping\n\n")
				return err == nil
			}
		})
	}
}
