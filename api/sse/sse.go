package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/cache"
	"github.com/kasuganosora/npcsensor/game/world"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Second

// Directory resolves a sensor ID to its guard.
type Directory interface {
	FindGuard(sensorID uuid.UUID) (*world.Guard, *world.Room, bool)
}

// Handler streams live sensor events as server-sent events.
type Handler struct {
	pubsub cache.PubSub
	dir    Directory
	logger *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, dir Directory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pubsub: pubsub, dir: dir, logger: logger}
}

// ServeSensor handles GET /sse/sensors/:id. Every event the sensor flushes
// after the client connects is written as an "event: sensor" frame carrying
// the event JSON.
func (h *Handler) ServeSensor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor id"})
		return
	}
	if _, _, ok := h.dir.FindGuard(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return
	}

	msgCh, unsub, err := h.pubsub.Subscribe(c.Request.Context(), cache.EventsChannel(id))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err), zap.Stringer("sensor", id))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"sensor\":%q}\n\n", id.String())
	c.Writer.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: sensor\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
