package ai

import (
	"math"
	"time"

	"github.com/kasuganosora/npcsensor/game/sensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// GuardConfig tunes the default guard tree.
type GuardConfig struct {
	TurnRate       float64       `mapstructure:"turn_rate"`        // degrees per second toward a target
	PatrolTurnRate float64       `mapstructure:"patrol_turn_rate"` // degrees per second while sweeping
	GiveUpAfter    time.Duration `mapstructure:"give_up_after"`
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		TurnRate:       180,
		PatrolTurnRate: 30,
		GiveUpAfter:    time.Second,
	}
}

// NewGuardTree builds the standard guard: engage a primary target at Alert,
// calm down after a fruitless search, look toward what it remembers while
// suspicious, and sweep otherwise.
func NewGuardTree(cfg GuardConfig) *BehaviorTree {
	return &BehaviorTree{Root: &Selector{Children: []Node{
		&Sequence{Children: []Node{
			AlertAtLeast(sensor.Alert),
			HasPrimaryTarget(),
			FacePrimary(cfg.TurnRate),
		}},
		&Sequence{Children: []Node{
			GaveUpSearch(cfg.GiveUpAfter),
			CalmDown(),
		}},
		&Sequence{Children: []Node{
			AlertAtLeast(sensor.Suspicious),
			FaceLastKnown(cfg.TurnRate),
		}},
		Patrol(cfg.PatrolTurnRate),
	}}}
}

// AlertAtLeast succeeds when the sensor's level is at or above l.
func AlertAtLeast(l sensor.Level) Node {
	return &ConditionNode{Name: "alert_at_least_" + l.String(), Fn: func(ctx *Context) bool {
		return ctx.Sensor.GetCurrentAlertLevel() >= l
	}}
}

func HasPrimaryTarget() Node {
	return &ConditionNode{Name: "has_primary", Fn: func(ctx *Context) bool {
		_, ok := ctx.Sensor.GetPrimaryTarget()
		return ok
	}}
}

// GaveUpSearch succeeds once the sensor has sat at Investigating for after
// without any new stimulus.
func GaveUpSearch(after time.Duration) Node {
	return &ConditionNode{Name: "gave_up_search", Fn: func(ctx *Context) bool {
		if ctx.Sensor.GetCurrentAlertLevel() != sensor.Investigating {
			return false
		}
		if ctx.Sensor.GetAlertTimer() < after.Seconds() {
			return false
		}
		snap := ctx.Sensor.Snapshot()
		return snap != nil && snap.TimeSinceStimulus >= after
	}}
}

// FacePrimary turns toward the primary target's observed position.
func FacePrimary(turnRate float64) Node {
	return &ActionNode{Name: "face_primary", Fn: func(ctx *Context) Status {
		t, ok := ctx.Sensor.GetPrimaryTarget()
		if !ok {
			return StatusFailure
		}
		ctx.Guard.SetState(StateEngage)
		turnTo(ctx, t.Position, turnRate)
		return StatusSuccess
	}}
}

// FaceLastKnown turns toward where the strongest remembered candidate is
// predicted to be. Fails when memory is empty.
func FaceLastKnown(turnRate float64) Node {
	return &ActionNode{Name: "face_last_known", Fn: func(ctx *Context) Status {
		id, ok := strongestMemory(ctx)
		if !ok {
			return StatusFailure
		}
		pos, ok := ctx.Sensor.GetPredictedPosition(id)
		if !ok {
			return StatusFailure
		}
		if ctx.Sensor.GetCurrentAlertLevel() >= sensor.Investigating {
			ctx.Guard.SetState(StateInvestigate)
		} else {
			ctx.Guard.SetState(StateWary)
		}
		turnTo(ctx, pos, turnRate)
		return StatusSuccess
	}}
}

func CalmDown() Node {
	return &ActionNode{Name: "calm_down", Fn: func(ctx *Context) Status {
		ctx.Guard.CalmDown()
		ctx.Guard.SetState(StatePatrol)
		return StatusSuccess
	}}
}

// Patrol sweeps the guard's facing counter-clockwise.
func Patrol(turnRate float64) Node {
	return &ActionNode{Name: "patrol", Fn: func(ctx *Context) Status {
		ctx.Guard.SetState(StatePatrol)
		fwd := ctx.Guard.Pose().Forward
		a := math.Atan2(fwd.Y, fwd.X) + turnRate*math.Pi/180*ctx.Delta.Seconds()
		ctx.Guard.Face(r3.Vec{X: math.Cos(a), Y: math.Sin(a)})
		return StatusSuccess
	}}
}

func strongestMemory(ctx *Context) (sensor.CandidateID, bool) {
	if t, ok := ctx.Sensor.GetPrimaryTarget(); ok {
		return t.Candidate, true
	}
	snap := ctx.Sensor.Snapshot()
	if snap == nil || len(snap.Memory) == 0 {
		return 0, false
	}
	return snap.Memory[0].Candidate, true
}

func turnTo(ctx *Context, target r3.Vec, turnRate float64) {
	pose := ctx.Guard.Pose()
	maxStep := turnRate * math.Pi / 180 * ctx.Delta.Seconds()
	ctx.Guard.Face(TurnToward(pose.Forward, r3.Sub(target, pose.Position), maxStep))
}

// TurnToward rotates cur toward want in the XY plane by at most maxStep
// radians and returns a unit vector. A zero want leaves cur unchanged.
func TurnToward(cur, want r3.Vec, maxStep float64) r3.Vec {
	if math.Hypot(want.X, want.Y) < 1e-9 {
		return cur
	}
	from := math.Atan2(cur.Y, cur.X)
	to := math.Atan2(want.Y, want.X)
	diff := math.Remainder(to-from, 2*math.Pi)
	if maxStep >= 0 && math.Abs(diff) > maxStep {
		diff = math.Copysign(maxStep, diff)
	}
	a := from + diff
	return r3.Vec{X: math.Cos(a), Y: math.Sin(a)}
}
