package world

import (
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/npcsensor/game/ai"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/kasuganosora/npcsensor/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var facingEast = r3.Vec{X: 1}

func newTestRoom(t *testing.T, grid *Grid) (*Room, *Guard) {
	t.Helper()
	room := NewRoom(1, grid, DefaultRoomConfig(), 42, nil)
	g, err := room.AddGuard("g1", sensor.Pose{Position: r3.Vec{X: 2.5, Y: 10.5}, Forward: facingEast}, sensor.DefaultSettings(), nil)
	require.NoError(t, err)
	return room, g
}

func TestRoom_GuardSpotsAndEngagesActor(t *testing.T) {
	room, g := newTestRoom(t, Walled(20, 20, 1))
	a := room.SpawnActor(r3.Vec{X: 6.5, Y: 10.5}, 0)

	var kinds []sensor.EventKind
	for i := 0; i < 40; i++ {
		for _, ev := range room.Tick() {
			kinds = append(kinds, ev.Kind)
		}
	}

	assert.Equal(t, uint64(40), room.Ticks())
	assert.Equal(t, sensor.Alert, g.Sensor().GetCurrentAlertLevel())
	p, ok := g.Sensor().GetPrimaryTarget()
	require.True(t, ok)
	assert.Equal(t, a.ID, p.Candidate)
	assert.Equal(t, ai.StateEngage, g.State())
	assert.Contains(t, kinds, sensor.EventTargetSpotted)
	assert.Contains(t, kinds, sensor.EventAlertLevelChanged)

	info := g.Info()
	assert.Equal(t, "g1", info.Name)
	assert.Equal(t, sensor.Alert, info.Level)
}

func TestRoom_AlarmReachesRoommates(t *testing.T) {
	room, _ := newTestRoom(t, Walled(20, 20, 1))
	other, err := room.AddGuard("g2", sensor.Pose{Position: r3.Vec{X: 15.5, Y: 10.5}, Forward: facingEast}, sensor.DefaultSettings(), nil)
	require.NoError(t, err)
	room.SpawnActor(r3.Vec{X: 6.5, Y: 10.5}, 0)

	highest := sensor.Relaxed
	for i := 0; i < 40; i++ {
		room.Tick()
		if l := other.Sensor().GetCurrentAlertLevel(); l > highest {
			highest = l
		}
	}
	assert.GreaterOrEqual(t, highest, sensor.Suspicious)
	assert.Empty(t, other.Sensor().GetDetectedTargets(), "the roommate never saw the actor")
}

func TestRoom_WallBlocksSight(t *testing.T) {
	grid := Walled(20, 20, 1)
	for y := 1; y < 19; y++ {
		grid.Set(4, y, CellWall)
	}
	room, g := newTestRoom(t, grid)
	room.SpawnActor(r3.Vec{X: 6.5, Y: 10.5}, 0)

	for i := 0; i < 40; i++ {
		room.Tick()
	}
	assert.Equal(t, sensor.Relaxed, g.Sensor().GetCurrentAlertLevel())
	assert.Empty(t, g.Sensor().GetDetectedTargets())
	assert.Equal(t, ai.StatePatrol, g.State())
}

func TestRoom_NoiseBehindGuardRaisesSuspicion(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.NoiseStimulus = 1
	room := NewRoom(2, nil, cfg, 1, nil)
	g, err := room.AddGuard("g", sensor.Pose{Forward: facingEast}, sensor.DefaultSettings(), nil)
	require.NoError(t, err)

	a := room.SpawnActor(r3.Vec{X: -3}, 0)
	a.MakingNoise = true
	for i := 0; i < 10; i++ {
		room.Tick()
	}
	assert.GreaterOrEqual(t, g.Sensor().GetCurrentAlertLevel(), sensor.Suspicious)
	assert.Empty(t, g.Sensor().GetDetectedTargets(), "heard, not seen")
}

func TestRoom_AddGuardRejectsInvalidSettings(t *testing.T) {
	room := NewRoom(3, nil, DefaultRoomConfig(), 1, nil)
	s := sensor.DefaultSettings()
	s.Detection.SightRange = -1
	_, err := room.AddGuard("bad", sensor.Pose{Forward: facingEast}, s, nil)
	assert.ErrorIs(t, err, sensor.ErrInvalidSettings)
	assert.Empty(t, room.Guards())
}

func TestRoom_CandidatesWithin(t *testing.T) {
	room := NewRoom(4, nil, DefaultRoomConfig(), 1, nil)
	room.SpawnActor(r3.Vec{X: 1}, 0)
	room.SpawnActor(r3.Vec{X: 10}, 0)
	room.Tick()
	assert.Len(t, room.CandidatesWithin(r3.Vec{}, 5), 1)
	assert.Len(t, room.CandidatesWithin(r3.Vec{}, 50), 2)
	assert.Len(t, room.Actors(), 2)
}

func TestPopulate(t *testing.T) {
	room := NewRoom(5, Walled(12, 12, 1), DefaultRoomConfig(), 7, nil)
	require.NoError(t, Populate(room, SpawnConfig{Actors: 6, ActorSpeed: 1.5, Guards: 2}, sensor.DefaultSettings(), nil))
	assert.Len(t, room.Actors(), 6)
	assert.Len(t, room.Guards(), 2)

	for i := 0; i < 100; i++ {
		room.Tick()
	}
	for _, a := range room.Actors() {
		assert.False(t, room.Grid().Blocked(a.Position), "actors never walk into walls")
	}

	assert.ErrorIs(t, Populate(NewRoom(6, nil, DefaultRoomConfig(), 1, nil), SpawnConfig{}, sensor.DefaultSettings(), nil), ErrBadGrid)
}

type fakeTicks struct {
	mu    sync.Mutex
	tasks map[string]scheduler.TaskFn
}

func (f *fakeTicks) AddTicker(name string, _ time.Duration, fn scheduler.TaskFn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tasks == nil {
		f.tasks = map[string]scheduler.TaskFn{}
	}
	f.tasks[name] = fn
}

func (f *fakeTicks) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, name)
}

func TestManager(t *testing.T) {
	ticks := &fakeTicks{}
	m := NewManager(ticks, nil)
	room, g := newTestRoom(t, nil)
	m.Add(room)
	m.Add(NewRoom(9, nil, DefaultRoomConfig(), 1, nil))

	require.Contains(t, ticks.tasks, "room:1")
	ticks.tasks["room:1"]()
	assert.Equal(t, uint64(1), room.Ticks())

	assert.Same(t, room, m.Get(1))
	assert.Len(t, m.Rooms(), 2)
	assert.Equal(t, 9, m.Rooms()[1].ID)
	assert.Len(t, m.Guards(), 1)

	found, in, ok := m.FindGuard(g.Sensor().ID())
	require.True(t, ok)
	assert.Same(t, g, found)
	assert.Same(t, room, in)

	m.Remove(1)
	assert.Nil(t, m.Get(1))
	assert.NotContains(t, ticks.tasks, "room:1")

	m.StopAll()
	assert.Empty(t, ticks.tasks)
	assert.Empty(t, m.Rooms())
}
