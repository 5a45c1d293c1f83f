package sensor

import (
	"math"
	"time"
)

// Observation is everything the evaluator may use to score one candidate.
type Observation struct {
	Distance   float64
	Angle      float64 // degrees off the eye forward
	SightRange float64
	HalfFOV    float64 // degrees
	Crouched   bool
	InShadow   bool
	Noisy      bool
	Dwell      time.Duration // continuous detection time so far
}

// ScoreEvaluator turns an observation into a detection score in [0, 1].
// Implementations must be pure and monotonically non-increasing in both
// distance and angle.
type ScoreEvaluator interface {
	Evaluate(o Observation) float64
}

// ScoreBreakdown exposes the weighted factors behind one score.
type ScoreBreakdown struct {
	Distance float64 `json:"distance"`
	Angle    float64 `json:"angle"`
	Clarity  float64 `json:"clarity"`
	Light    float64 `json:"light"`
	Total    float64 `json:"total"`
}

const (
	factorWeight  = 0.25
	angleEdgeLoss = 0.8 // share of the angle factor lost at the FOV edge
	normalLight   = 0.7
	shadowLight   = 0.3
	instantFloor  = 0.9
	optimalBoost  = 1.2
	maxDwellBonus = 0.15
	fullClarity   = 1.0
)

// DefaultEvaluator scores with four equally weighted factors: linear distance
// falloff, angle falloff keeping 20% at the cone edge, clarity and light.
type DefaultEvaluator struct {
	s DetectionSettings
}

func NewDefaultEvaluator(s DetectionSettings) DefaultEvaluator {
	return DefaultEvaluator{s: s}
}

func (e DefaultEvaluator) Evaluate(o Observation) float64 {
	return e.Breakdown(o).Total
}

func (e DefaultEvaluator) Breakdown(o Observation) ScoreBreakdown {
	var b ScoreBreakdown
	if o.SightRange <= 0 || o.HalfFOV <= 0 || !finite(o.Distance) || !finite(o.Angle) {
		return b
	}
	b.Distance = clamp01(1 - o.Distance/o.SightRange)
	b.Angle = clamp01(1 - (o.Angle/o.HalfFOV)*angleEdgeLoss)
	if o.Angle > o.HalfFOV {
		b.Angle = 0
	}
	b.Clarity = fullClarity
	b.Light = normalLight
	if o.InShadow {
		b.Light = shadowLight
	}

	score := factorWeight * (b.Distance + b.Angle + b.Clarity + b.Light)
	if o.Distance <= e.s.InstantDetectionRange {
		score = math.Max(score, instantFloor)
	}
	if o.Angle <= e.s.OptimalAngle {
		score *= optimalBoost
	}
	if o.Crouched {
		score *= e.s.CrouchMultiplier
	}
	if o.Noisy {
		score *= e.s.NoiseMultiplier
	}
	if e.s.DwellFull > 0 && o.Dwell > 0 {
		score += maxDwellBonus * math.Min(float64(o.Dwell)/float64(e.s.DwellFull), 1)
	}
	if e.s.ScoreMultiplier > 0 {
		score *= e.s.ScoreMultiplier
	}
	b.Total = clamp01(score)
	return b
}
