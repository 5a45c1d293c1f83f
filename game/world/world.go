package world

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/scheduler"
	"go.uber.org/zap"
)

// TickSource runs named periodic tasks. Implemented by *scheduler.Scheduler.
type TickSource interface {
	AddTicker(name string, interval time.Duration, fn scheduler.TaskFn)
	Remove(name string)
}

// Manager owns every active Room and drives their ticks.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[int]*Room
	ticks  TickSource
	logger *zap.Logger
}

// NewManager creates a Manager. With a nil TickSource rooms are only ticked
// when the caller does it.
func NewManager(ticks TickSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		rooms:  make(map[int]*Room),
		ticks:  ticks,
		logger: logger,
	}
}

func tickerName(roomID int) string { return fmt.Sprintf("room:%d", roomID) }

// Add registers room and starts ticking it. A room with the same ID is
// replaced.
func (m *Manager) Add(room *Room) {
	m.mu.Lock()
	m.rooms[room.ID] = room
	m.mu.Unlock()
	if m.ticks != nil {
		m.ticks.AddTicker(tickerName(room.ID), room.cfg.TickInterval, func() { room.Tick() })
	}
	m.logger.Info("room started", zap.Int("room", room.ID), zap.Duration("tick", room.cfg.TickInterval))
}

// Get returns the room for id, or nil if it does not exist.
func (m *Manager) Get(id int) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

// Remove stops ticking the room and forgets it.
func (m *Manager) Remove(id int) {
	m.mu.Lock()
	_, ok := m.rooms[id]
	delete(m.rooms, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.ticks != nil {
		m.ticks.Remove(tickerName(id))
	}
	m.logger.Info("room stopped", zap.Int("room", id))
}

// Rooms returns the active rooms ordered by ID.
func (m *Manager) Rooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Guards returns every guard across all rooms.
func (m *Manager) Guards() []*Guard {
	var out []*Guard
	for _, r := range m.Rooms() {
		out = append(out, r.Guards()...)
	}
	return out
}

// FindGuard looks a guard up by sensor ID across all rooms.
func (m *Manager) FindGuard(sensorID uuid.UUID) (*Guard, *Room, bool) {
	for _, r := range m.Rooms() {
		if g, ok := r.FindGuard(sensorID); ok {
			return g, r, true
		}
	}
	return nil, nil, false
}

// StopAll stops ticking every room (used at shutdown).
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]int, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	m.rooms = make(map[int]*Room)
	m.mu.Unlock()
	if m.ticks == nil {
		return
	}
	for _, id := range ids {
		m.ticks.Remove(tickerName(id))
	}
}
