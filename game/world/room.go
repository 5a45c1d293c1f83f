package world

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/game/ai"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

const defaultTickInterval = 50 * time.Millisecond // 20 TPS

// RoomConfig tunes a room's simulation.
type RoomConfig struct {
	TickInterval  time.Duration  `mapstructure:"tick_interval"`
	HearingRadius float64        `mapstructure:"hearing_radius"`
	NoiseStimulus float64        `mapstructure:"noise_stimulus"` // alert intensity per second of audible noise
	AlarmStimulus float64        `mapstructure:"alarm_stimulus"` // given to roommates when a guard reaches Alert
	Guard         ai.GuardConfig `mapstructure:"guard"`
}

func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TickInterval:  defaultTickInterval,
		HearingRadius: 6,
		NoiseStimulus: 0.3,
		AlarmStimulus: 0.3,
		Guard:         ai.DefaultGuardConfig(),
	}
}

// Room is a single simulated area with its own actors and guards. Tick
// must be called from one goroutine; the accessors are safe from any.
type Room struct {
	ID     int
	cfg    RoomConfig
	grid   *Grid
	rng    *rand.Rand
	logger *zap.Logger

	mu     sync.RWMutex
	actors []*Actor
	guards []*Guard
	frame  []sensor.Candidate
	ticks  uint64
}

// NewRoom creates a room over grid. A nil grid means open ground with no
// occlusion.
func NewRoom(id int, grid *Grid, cfg RoomConfig, seed int64, logger *zap.Logger) *Room {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	return &Room{
		ID:     id,
		cfg:    cfg,
		grid:   grid,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger.With(zap.Int("room", id)),
	}
}

func (r *Room) Config() RoomConfig { return r.cfg }

func (r *Room) Grid() *Grid { return r.grid }

// SpawnActor adds a wandering actor at pos.
func (r *Room) SpawnActor(pos r3.Vec, speed float64) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := NewActor(pos, speed, r.rng)
	r.actors = append(r.actors, a)
	r.frame = append(r.frame, a.Candidate(r.grid))
	return a
}

// AddGuard creates a guard with its own sensor and the default guard tree.
// Its events go to sink and to the room's alarm relay.
func (r *Room) AddGuard(name string, pose sensor.Pose, settings sensor.Settings, sink sensor.EventSink) (*Guard, error) {
	deps := sensor.Deps{
		Spatial: r,
		Sink:    sensor.FanOut{sink, sensor.SinkFunc(r.relayAlarm)},
		Logger:  r.logger,
	}
	if r.grid != nil {
		deps.Raycaster = r.grid
	}
	s, err := sensor.New(settings, deps)
	if err != nil {
		return nil, fmt.Errorf("guard %s: %w", name, err)
	}
	g := newGuard(name, pose, s, ai.NewGuardTree(r.cfg.Guard), r.logger)

	r.mu.Lock()
	r.guards = append(r.guards, g)
	r.mu.Unlock()
	r.logger.Info("guard added", zap.String("guard", name), zap.String("sensor", s.ID().String()))
	return g, nil
}

// CandidatesWithin implements sensor.SpatialQuery over the actors as they
// stood at the start of the current tick.
func (r *Room) CandidatesWithin(origin r3.Vec, radius float64) []sensor.Candidate {
	var out []sensor.Candidate
	for _, c := range r.frame {
		if r3.Norm(r3.Sub(c.Position, origin)) <= radius {
			out = append(out, c)
		}
	}
	return out
}

// Tick advances the room by one interval: actors move, guards hear noise,
// then every guard runs its sensor and behavior tree. It returns the events
// flushed this tick across all guards.
func (r *Room) Tick() []sensor.EventRecord {
	dt := r.cfg.TickInterval

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++

	r.frame = r.frame[:0]
	for _, a := range r.actors {
		a.step(dt, r.grid, r.rng)
		r.frame = append(r.frame, a.Candidate(r.grid))
	}

	var flushed []sensor.EventRecord
	for _, g := range r.guards {
		r.hear(g, dt)
		flushed = append(flushed, g.tick(dt)...)
	}
	return flushed
}

// hear stimulates g for every noisy actor inside the hearing radius.
func (r *Room) hear(g *Guard, dt time.Duration) {
	if r.cfg.NoiseStimulus <= 0 {
		return
	}
	pos := g.Pose().Position
	for _, c := range r.frame {
		if !c.MakingNoise {
			continue
		}
		if math.Hypot(c.Position.X-pos.X, c.Position.Y-pos.Y) <= r.cfg.HearingRadius {
			g.Sensor().Stimulate(r.cfg.NoiseStimulus * dt.Seconds())
		}
	}
}

// relayAlarm stimulates every other guard when one reaches Alert. Events
// are delivered during Tick, which already holds r.mu.
func (r *Room) relayAlarm(rec sensor.EventRecord) {
	if rec.Kind != sensor.EventAlertLevelChanged || r.cfg.AlarmStimulus <= 0 {
		return
	}
	lc, ok := rec.Payload.(sensor.LevelChange)
	if !ok || lc.To != sensor.Alert {
		return
	}
	for _, g := range r.guards {
		if g.sensor.ID() != rec.Sensor {
			g.sensor.Stimulate(r.cfg.AlarmStimulus)
		}
	}
	r.logger.Info("alarm raised", zap.String("sensor", rec.Sensor.String()))
}

func (r *Room) Ticks() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ticks
}

func (r *Room) Guards() []*Guard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Guard(nil), r.guards...)
}

// FindGuard returns the guard whose sensor has the given ID.
func (r *Room) FindGuard(sensorID uuid.UUID) (*Guard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.guards {
		if g.sensor.ID() == sensorID {
			return g, true
		}
	}
	return nil, false
}

// Actors returns copies of the actors.
func (r *Room) Actors() []Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Actor, len(r.actors))
	for i, a := range r.actors {
		out[i] = *a
	}
	return out
}
