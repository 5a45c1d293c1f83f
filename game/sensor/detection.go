package sensor

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// occlusionSlack keeps a ray that ends on the candidate's surface from
// counting as a blocker.
const occlusionSlack = 1e-3

// Detector scores the visible candidates of one scan.
type Detector struct {
	s      DetectionSettings
	eval   ScoreEvaluator
	pool   *DetectionPool
	logger *zap.Logger

	dwellSince map[CandidateID]time.Time
}

func NewDetector(s DetectionSettings, eval ScoreEvaluator, pool *DetectionPool, logger *zap.Logger) *Detector {
	if eval == nil {
		eval = NewDefaultEvaluator(s)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		s:          s,
		eval:       eval,
		pool:       pool,
		logger:     logger,
		dwellSince: make(map[CandidateID]time.Time),
	}
}

// Scan returns the candidates that are in range, inside the cone, not
// occluded and score above the minimum, sorted by score descending then
// distance ascending. A nil occlusion test treats everything as visible.
func (d *Detector) Scan(eye Pose, candidates []Candidate, occlusion Raycaster, now time.Time) []*Detection {
	if !eye.Valid() {
		d.logger.Debug("sensor scan skipped: degenerate eye pose")
		return nil
	}
	halfFOV := d.s.FieldOfView / 2
	var out []*Detection
	seen := make(map[CandidateID]struct{}, len(candidates))

	for _, c := range candidates {
		if !c.Valid() {
			d.logger.Debug("sensor skipped invalid candidate", zap.Int64("candidate", int64(c.ID)))
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		dist, angle := geometry(eye, c.Position)
		if dist > d.s.SightRange || angle > halfFOV {
			continue
		}
		if occluded(occlusion, eye.Position, c, dist) {
			continue
		}

		var dwell time.Duration
		if since, ok := d.dwellSince[c.ID]; ok {
			dwell = now.Sub(since)
		}
		score := clamp01(d.eval.Evaluate(Observation{
			Distance:   dist,
			Angle:      angle,
			SightRange: d.s.SightRange,
			HalfFOV:    halfFOV,
			Crouched:   c.Crouched,
			InShadow:   c.InShadow,
			Noisy:      c.MakingNoise,
			Dwell:      dwell,
		}))
		if score <= d.s.MinDetectionScore {
			continue
		}

		det := d.pool.Get()
		det.Candidate = c.ID
		det.Score = score
		det.Timestamp = now
		det.Position = c.Position
		det.Velocity = c.Velocity
		det.Distance = dist
		det.Angle = angle
		out = append(out, det)
		seen[c.ID] = struct{}{}
	}

	for id := range d.dwellSince {
		if _, ok := seen[id]; !ok {
			delete(d.dwellSince, id)
		}
	}
	for _, det := range out {
		if _, ok := d.dwellSince[det.Candidate]; !ok {
			d.dwellSince[det.Candidate] = now
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Candidate < out[j].Candidate
	})
	return out
}

// CanSee reports whether c is in range, inside the cone and not occluded.
// The score threshold does not apply.
func (d *Detector) CanSee(eye Pose, c Candidate, occlusion Raycaster) bool {
	if !eye.Valid() || !c.Valid() {
		return false
	}
	dist, angle := geometry(eye, c.Position)
	if dist > d.s.SightRange || angle > d.s.FieldOfView/2 {
		return false
	}
	return !occluded(occlusion, eye.Position, c, dist)
}

// resetDwell restarts continuous-detection time for every candidate.
func (d *Detector) resetDwell() { clear(d.dwellSince) }

// Breakdown scores a single candidate ignoring occlusion and dwell. ok is
// false when the candidate is out of range or outside the cone.
func (d *Detector) Breakdown(eye Pose, c Candidate) (ScoreBreakdown, bool) {
	if !eye.Valid() || !c.Valid() {
		return ScoreBreakdown{}, false
	}
	dist, angle := geometry(eye, c.Position)
	halfFOV := d.s.FieldOfView / 2
	if dist > d.s.SightRange || angle > halfFOV {
		return ScoreBreakdown{}, false
	}
	o := Observation{
		Distance:   dist,
		Angle:      angle,
		SightRange: d.s.SightRange,
		HalfFOV:    halfFOV,
		Crouched:   c.Crouched,
		InShadow:   c.InShadow,
		Noisy:      c.MakingNoise,
	}
	if de, ok := d.eval.(DefaultEvaluator); ok {
		return de.Breakdown(o), true
	}
	return ScoreBreakdown{Total: clamp01(d.eval.Evaluate(o))}, true
}

// geometry returns the distance to p and its angle in degrees off the eye
// forward. A point on top of the eye is straight ahead.
func geometry(eye Pose, p r3.Vec) (dist, angle float64) {
	to := r3.Sub(p, eye.Position)
	dist = r3.Norm(to)
	if dist < 1e-9 {
		return 0, 0
	}
	cos := math.Max(-1, math.Min(1, r3.Cos(to, eye.Forward)))
	return dist, math.Acos(cos) * 180 / math.Pi
}

func occluded(rc Raycaster, from r3.Vec, c Candidate, dist float64) bool {
	if rc == nil {
		return false
	}
	hit, ok := rc.Raycast(from, c.Position)
	if !ok || hit.Candidate == c.ID {
		return false
	}
	return hit.Distance < dist-occlusionSlack
}
