package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/cache"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/kasuganosora/npcsensor/game/world"
	"github.com/kasuganosora/npcsensor/journal"
	"github.com/kasuganosora/npcsensor/model"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	defaultRecentEvents = 20
	maxRecentEvents     = 200
	lookupTimeout       = 2 * time.Second
)

// GuardDirectory resolves sensors to the guards that own them.
type GuardDirectory interface {
	Guards() []*world.Guard
	FindGuard(sensorID uuid.UUID) (*world.Guard, *world.Room, bool)
}

// JournalReader reads persisted sensor events.
type JournalReader interface {
	Query(ctx context.Context, f journal.Filter) ([]model.SensorEvent, error)
}

// SensorHandler serves the read-only sensor diagnostics endpoints. Every
// read goes through the sensors' published snapshots, so handlers never
// contend with the room tick.
type SensorHandler struct {
	guards  GuardDirectory
	kv      cache.Cache
	journal JournalReader
	logger  *zap.Logger
}

// NewSensorHandler creates a SensorHandler. kv and jr may be nil, in which
// case their endpoints answer 503.
func NewSensorHandler(guards GuardDirectory, kv cache.Cache, jr JournalReader, logger *zap.Logger) *SensorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SensorHandler{guards: guards, kv: kv, journal: jr, logger: logger}
}

// List handles GET /api/sensors.
func (h *SensorHandler) List(c *gin.Context) {
	guards := h.guards.Guards()
	out := make([]world.GuardInfo, 0, len(guards))
	for _, g := range guards {
		out = append(out, g.Info())
	}
	c.JSON(http.StatusOK, gin.H{"sensors": out, "count": len(out)})
}

// lookup resolves the :id param, answering the request itself on failure.
func (h *SensorHandler) lookup(c *gin.Context) (*world.Guard, *world.Room, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor id"})
		return nil, nil, false
	}
	g, room, ok := h.guards.FindGuard(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sensor not found"})
		return nil, nil, false
	}
	return g, room, true
}

// Detail handles GET /api/sensors/:id.
func (h *SensorHandler) Detail(c *gin.Context) {
	g, room, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"guard":    g.Info(),
		"room":     room.ID,
		"snapshot": g.Sensor().Snapshot(),
	})
}

type predictResponse struct {
	Candidate  sensor.CandidateID `json:"candidate"`
	Predicted  r3.Vec             `json:"predicted"`
	LastKnown  r3.Vec             `json:"last_known"`
	Confidence float64            `json:"confidence"`
	Tier       sensor.Tier        `json:"tier"`
	At         time.Time          `json:"at"`
}

// Predict handles GET /api/sensors/:id/memory/:cid/predict.
func (h *SensorHandler) Predict(c *gin.Context) {
	g, _, ok := h.lookup(c)
	if !ok {
		return
	}
	cid, err := strconv.ParseInt(c.Param("cid"), 10, 64)
	if err != nil || cid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
		return
	}

	snap := g.Sensor().Snapshot()
	rec, found := snap.Record(sensor.CandidateID(cid))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "candidate not remembered"})
		return
	}
	pos, _ := snap.Predict(rec.Candidate)
	c.JSON(http.StatusOK, predictResponse{
		Candidate:  rec.Candidate,
		Predicted:  pos,
		LastKnown:  rec.Position,
		Confidence: rec.Confidence,
		Tier:       rec.Tier,
		At:         snap.Time,
	})
}

type recentQuery struct {
	N int64 `form:"n" binding:"omitempty,min=1"`
}

// Recent handles GET /api/sensors/:id/events, the latest flushed events the
// event publisher keeps in the cache.
func (h *SensorHandler) Recent(c *gin.Context) {
	if h.kv == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event cache disabled"})
		return
	}
	g, _, ok := h.lookup(c)
	if !ok {
		return
	}
	var q recentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n := q.N
	switch {
	case n == 0:
		n = defaultRecentEvents
	case n > maxRecentEvents:
		n = maxRecentEvents
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), lookupTimeout)
	defer cancel()
	events, err := cache.RecentEvents(ctx, h.kv, g.Sensor().ID(), n)
	if err != nil {
		h.logger.Error("recent events lookup failed", zap.Error(err), zap.Stringer("sensor", g.Sensor().ID()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if events == nil {
		events = []json.RawMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

type journalQuery struct {
	Kind  string `form:"kind"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// Journal handles GET /api/sensors/:id/journal.
func (h *SensorHandler) Journal(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	g, _, ok := h.lookup(c)
	if !ok {
		return
	}
	var q journalQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.journal.Query(c.Request.Context(), journal.Filter{
		SensorID: g.Sensor().ID(),
		Kind:     sensor.EventKind(q.Kind),
		Limit:    q.Limit,
	})
	if err != nil {
		h.logger.Error("journal query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": rows, "count": len(rows)})
}
