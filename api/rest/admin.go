package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/npcsensor/game/world"
	"github.com/kasuganosora/npcsensor/scheduler"
)

// StatsSource reports scheduler task statistics.
type StatsSource interface {
	Stats() []scheduler.TaskStats
}

// AdminHandler serves admin-only endpoints.
// Routes should be protected by the AdminAuth middleware.
type AdminHandler struct {
	sched StatsSource
	rooms *world.Manager
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(sched StatsSource, rooms *world.Manager) *AdminHandler {
	return &AdminHandler{sched: sched, rooms: rooms}
}

// Scheduler handles GET /api/admin/scheduler.
func (h *AdminHandler) Scheduler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Stats()})
}

type roomInfo struct {
	ID     int    `json:"id"`
	Ticks  uint64 `json:"ticks"`
	Guards int    `json:"guards"`
	Actors int    `json:"actors"`
}

// Rooms handles GET /api/admin/rooms.
func (h *AdminHandler) Rooms(c *gin.Context) {
	rooms := h.rooms.Rooms()
	out := make([]roomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomInfo{
			ID:     r.ID,
			Ticks:  r.Ticks(),
			Guards: len(r.Guards()),
			Actors: len(r.Actors()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out, "count": len(out)})
}
