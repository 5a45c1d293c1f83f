// Package sensor implements the NPC visual sensor: per-tick target detection,
// memory of lost targets, bounded target tracking, the alert state machine and
// rate-limited event emission.
package sensor

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrInvalidSettings = errors.New("sensor: invalid settings")
	ErrNilDependency   = errors.New("sensor: nil dependency")
)

// CandidateID identifies a potential target. Zero is never a valid handle.
type CandidateID int64

// Candidate is the per-tick state of a potential target supplied by the host.
type Candidate struct {
	ID          CandidateID
	Position    r3.Vec
	Velocity    r3.Vec
	Crouched    bool
	InShadow    bool
	MakingNoise bool
}

// Valid reports whether the handle and its transform can be used this tick.
func (c Candidate) Valid() bool {
	return c.ID != 0 && finiteVec(c.Position) && finiteVec(c.Velocity)
}

// Pose is the observer eye: a position and a forward direction.
type Pose struct {
	Position r3.Vec
	Forward  r3.Vec
}

// Valid reports whether the pose can be used for a scan.
func (p Pose) Valid() bool {
	return finiteVec(p.Position) && finiteVec(p.Forward) && r3.Norm(p.Forward) > 1e-9
}

// Hit is the result of a visibility ray that struck something.
type Hit struct {
	Point     r3.Vec
	Distance  float64
	Candidate CandidateID // non-zero when the ray struck a candidate's own body
}

// SpatialQuery returns the candidates around a point.
type SpatialQuery interface {
	CandidatesWithin(origin r3.Vec, radius float64) []Candidate
}

// Raycaster casts a visibility ray. ok is false when nothing was hit.
type Raycaster interface {
	Raycast(from, to r3.Vec) (hit Hit, ok bool)
}

// SpatialQueryFunc adapts a function to SpatialQuery.
type SpatialQueryFunc func(origin r3.Vec, radius float64) []Candidate

func (f SpatialQueryFunc) CandidatesWithin(origin r3.Vec, radius float64) []Candidate {
	return f(origin, radius)
}

// RaycastFunc adapts a function to Raycaster.
type RaycastFunc func(from, to r3.Vec) (Hit, bool)

func (f RaycastFunc) Raycast(from, to r3.Vec) (Hit, bool) { return f(from, to) }

// Detection is a scored observation of one candidate during one scan.
type Detection struct {
	Candidate CandidateID `json:"candidate"`
	Score     float64     `json:"score"`
	Timestamp time.Time   `json:"timestamp"`
	Position  r3.Vec      `json:"position"`
	Velocity  r3.Vec      `json:"velocity"`
	Distance  float64     `json:"distance"`
	Angle     float64     `json:"angle"` // degrees off the eye forward
}

func (d *Detection) reset() { *d = Detection{} }

// Tier is the memory tier of a record.
type Tier int

const (
	ShortTerm Tier = iota
	LongTerm
)

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t Tier) String() string {
	if t == LongTerm {
		return "long_term"
	}
	return "short_term"
}

// MemoryRecord is the sensor's belief about a candidate it has seen.
type MemoryRecord struct {
	Candidate  CandidateID `json:"candidate"`
	Confidence float64     `json:"confidence"`
	Position   r3.Vec      `json:"position"`
	Velocity   r3.Vec      `json:"velocity"`
	Tier       Tier        `json:"tier"`
	FirstSeen  time.Time   `json:"first_seen"`
	LastUpdate time.Time   `json:"last_update"`
	Sightings  int         `json:"sightings"`
}

// TrackedTarget is a member of the bounded tracking set.
type TrackedTarget struct {
	Candidate   CandidateID `json:"candidate"`
	Score       float64     `json:"score"`
	IsPrimary   bool        `json:"is_primary"`
	Position    r3.Vec      `json:"position"`
	AcquiredAt  time.Time   `json:"acquired_at"`
	LastSeen    time.Time   `json:"last_seen"`
	MissedTicks int         `json:"missed_ticks"`

	seq uint64 // acquisition order, breaks score ties
}

// Level is the discretized alert level.
type Level int

const (
	Relaxed Level = iota
	Suspicious
	Investigating
	Alert
)

var levelNames = [...]string{"relaxed", "suspicious", "investigating", "alert"}

func (l Level) String() string {
	if l < Relaxed || l > Alert {
		return "unknown"
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, bool) {
	for i, n := range levelNames {
		if n == s {
			return Level(i), true
		}
	}
	return Relaxed, false
}

// AlertState is the read-only view of the alert state machine.
type AlertState struct {
	Level     Level   `json:"level"`
	Intensity float64 `json:"intensity"`
	Timer     float64 `json:"timer"` // seconds in the current level
	DecayRate float64 `json:"decay_rate"`
}

// EventKind names a sensor event.
type EventKind string

const (
	EventTargetSpotted      EventKind = "target_spotted"
	EventTargetLost         EventKind = "target_lost"
	EventTargetTracked      EventKind = "target_tracked"
	EventTargetDropped      EventKind = "target_dropped"
	EventPrimaryChanged     EventKind = "primary_changed"
	EventAlertLevelChanged  EventKind = "alert_level_changed"
	EventSuspiciousActivity EventKind = "suspicious_activity"
	EventMemoryPromoted     EventKind = "memory_promoted"
	EventMemoryForgotten    EventKind = "memory_forgotten"
)

// EventRecord is one emitted sensor event.
type EventRecord struct {
	ID        uuid.UUID `json:"id"`
	Sensor    uuid.UUID `json:"sensor"`
	Kind      EventKind `json:"kind"`
	Subject   int64     `json:"subject"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// LevelChange is the payload of EventAlertLevelChanged.
type LevelChange struct {
	From      Level   `json:"from"`
	To        Level   `json:"to"`
	Intensity float64 `json:"intensity"`
}

// PrimaryChange is the payload of EventPrimaryChanged. Zero means none.
type PrimaryChange struct {
	From CandidateID `json:"from"`
	To   CandidateID `json:"to"`
}

func finiteVec(v r3.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
