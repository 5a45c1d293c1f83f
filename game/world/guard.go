package world

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/game/ai"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Guard is an NPC with one sensor and one behavior tree. The world is flat:
// the sensor eye is the guard's pose.
type Guard struct {
	Name   string
	sensor *sensor.Sensor
	tree   *ai.BehaviorTree
	ctx    ai.Context
	logger *zap.Logger

	mu    sync.RWMutex
	pose  sensor.Pose
	state ai.GuardState
}

// GuardInfo is the client-visible guard state.
type GuardInfo struct {
	Name     string        `json:"name"`
	Sensor   uuid.UUID     `json:"sensor"`
	Position r3.Vec        `json:"position"`
	Forward  r3.Vec        `json:"forward"`
	State    ai.GuardState `json:"state"`
	Level    sensor.Level  `json:"level"`
}

func newGuard(name string, pose sensor.Pose, s *sensor.Sensor, tree *ai.BehaviorTree, logger *zap.Logger) *Guard {
	g := &Guard{
		Name:   name,
		sensor: s,
		tree:   tree,
		pose:   pose,
		logger: logger.With(zap.String("guard", name), zap.String("sensor", s.ID().String())),
	}
	g.ctx = ai.Context{Guard: g, Sensor: s}
	return g
}

func (g *Guard) Sensor() *sensor.Sensor { return g.sensor }

// Pose implements ai.Body.
func (g *Guard) Pose() sensor.Pose {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pose
}

// Face implements ai.Body.
func (g *Guard) Face(forward r3.Vec) {
	g.mu.Lock()
	g.pose.Forward = forward
	g.mu.Unlock()
}

func (g *Guard) State() ai.GuardState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Guard) SetState(s ai.GuardState) {
	g.mu.Lock()
	prev := g.state
	g.state = s
	g.mu.Unlock()
	if prev != s {
		g.logger.Debug("guard state changed",
			zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// CalmDown implements ai.Body.
func (g *Guard) CalmDown() {
	g.logger.Info("guard gave up the search")
	g.sensor.ResetAlert()
}

func (g *Guard) Info() GuardInfo {
	pose := g.Pose()
	return GuardInfo{
		Name:     g.Name,
		Sensor:   g.sensor.ID(),
		Position: pose.Position,
		Forward:  pose.Forward,
		State:    g.State(),
		Level:    g.sensor.GetCurrentAlertLevel(),
	}
}

// tick runs the sensor and then the behavior tree.
func (g *Guard) tick(dt time.Duration) []sensor.EventRecord {
	out := g.sensor.Tick(dt, g.Pose())
	g.ctx.Delta = dt
	g.tree.Tick(&g.ctx)
	return out
}
