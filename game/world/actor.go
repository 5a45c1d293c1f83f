package world

import (
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/npcsensor/game/sensor"
	"gonum.org/v1/gonum/spatial/r3"
)

var actorIDCounter int64

func nextActorID() sensor.CandidateID {
	return sensor.CandidateID(atomic.AddInt64(&actorIDCounter, 1))
}

// Actor is a wandering candidate the guards can see.
type Actor struct {
	ID          sensor.CandidateID `json:"id"`
	Position    r3.Vec             `json:"position"`
	Velocity    r3.Vec             `json:"velocity"`
	Speed       float64            `json:"speed"`
	Crouched    bool               `json:"crouched"`
	MakingNoise bool               `json:"making_noise"`
}

// NewActor places an actor at pos heading in a random direction.
func NewActor(pos r3.Vec, speed float64, rng *rand.Rand) *Actor {
	a := &Actor{ID: nextActorID(), Position: pos, Speed: speed}
	a.turn(rng)
	return a
}

func (a *Actor) turn(rng *rand.Rand) {
	h := rng.Float64() * 2 * math.Pi
	a.Velocity = r3.Vec{X: math.Cos(h) * a.Speed, Y: math.Sin(h) * a.Speed}
}

// step advances the actor by dt, picking a new heading when the next
// position would be inside a wall. Posture and noise flip occasionally.
// Actors with zero speed stay exactly as they are.
func (a *Actor) step(dt time.Duration, g *Grid, rng *rand.Rand) {
	if a.Speed == 0 {
		return
	}
	next := r3.Add(a.Position, r3.Scale(dt.Seconds(), a.Velocity))
	if g != nil && g.Blocked(next) {
		a.turn(rng)
		return
	}
	a.Position = next
	if rng.Float64() < 0.01 {
		a.Crouched = !a.Crouched
	}
	a.MakingNoise = rng.Float64() < 0.02
}

// Candidate is the actor as the sensors see it this tick.
func (a *Actor) Candidate(g *Grid) sensor.Candidate {
	c := sensor.Candidate{
		ID:          a.ID,
		Position:    a.Position,
		Velocity:    a.Velocity,
		Crouched:    a.Crouched,
		MakingNoise: a.MakingNoise,
	}
	if g != nil {
		c.InShadow = g.InShadow(a.Position)
	}
	return c
}
