package ai

import (
	"time"

	"github.com/kasuganosora/npcsensor/game/sensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Context is passed to every behavior tree node during a tick.
type Context struct {
	Guard  Body
	Sensor SensorView
	Delta  time.Duration

	// Trace collects the names of the actions that ran this tick.
	Trace []string
}

// GuardState enumerates the high-level states of a guard.
type GuardState int

const (
	StatePatrol      GuardState = iota
	StateWary                   // suspicious, looking toward a remembered position
	StateInvestigate            // searching the predicted position
	StateEngage                 // facing a tracked primary target
)

func (s GuardState) String() string {
	switch s {
	case StateWary:
		return "wary"
	case StateInvestigate:
		return "investigate"
	case StateEngage:
		return "engage"
	default:
		return "patrol"
	}
}

func (s GuardState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Body is the guard the tree steers. Implemented by *world.Guard.
type Body interface {
	Pose() sensor.Pose
	Face(forward r3.Vec)
	State() GuardState
	SetState(GuardState)
	// CalmDown drops the guard's alert back to relaxed.
	CalmDown()
}

// SensorView is the read-only query surface of a sensor. *sensor.Sensor
// satisfies it.
type SensorView interface {
	GetCurrentAlertLevel() sensor.Level
	GetAlertTimer() float64
	GetPrimaryTarget() (sensor.TrackedTarget, bool)
	GetPredictedPosition(id sensor.CandidateID) (r3.Vec, bool)
	Snapshot() *sensor.Snapshot
}
