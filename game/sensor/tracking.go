package sensor

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// TrackingStats is a diagnostics snapshot of the tracking set.
type TrackingStats struct {
	Tracked     int         `json:"tracked"`
	Capacity    int         `json:"capacity"`
	Primary     CandidateID `json:"primary"`
	Preemptions int         `json:"preemptions"`
}

// TrackingResult is the outcome of one Update.
type TrackingResult struct {
	Targets []TrackedTarget
	Added   []CandidateID
	Dropped []CandidateID

	// PrimaryChanged is set once a new primary has held for a full update.
	PrimaryChanged  bool
	PreviousPrimary CandidateID
	Primary         CandidateID
}

// Tracker maintains the bounded set of actively tracked targets.
type Tracker struct {
	s       TrackingSettings
	targets []*TrackedTarget
	seq     uint64

	primary     CandidateID
	announced   CandidateID
	pending     CandidateID
	preemptions int
}

func NewTracker(s TrackingSettings) *Tracker {
	return &Tracker{s: s, targets: make([]*TrackedTarget, 0, s.MaxTargets)}
}

func (t *Tracker) MaxTargets() int { return t.s.MaxTargets }

func (t *Tracker) CanAcceptMore() bool { return len(t.targets) < t.s.MaxTargets }

// Update refreshes tracked targets from dets, drops the stale and the weak,
// admits new detections strongest first and re-elects the primary.
func (t *Tracker) Update(dets []*Detection, now time.Time) TrackingResult {
	var res TrackingResult
	byID := make(map[CandidateID]*Detection, len(dets))
	for _, d := range dets {
		if d != nil && d.Candidate != 0 {
			if _, dup := byID[d.Candidate]; !dup {
				byID[d.Candidate] = d
			}
		}
	}

	kept := t.targets[:0]
	for _, tt := range t.targets {
		if d, ok := byID[tt.Candidate]; ok {
			if d.Score < t.s.ExitScore {
				res.Dropped = append(res.Dropped, tt.Candidate)
				continue
			}
			tt.Score = d.Score
			tt.Position = d.Position
			tt.LastSeen = now
			tt.MissedTicks = 0
		} else {
			tt.MissedTicks++
			if tt.MissedTicks > t.s.GraceTicks {
				res.Dropped = append(res.Dropped, tt.Candidate)
				continue
			}
		}
		kept = append(kept, tt)
	}
	for i := len(kept); i < len(t.targets); i++ {
		t.targets[i] = nil
	}
	t.targets = kept

	candidates := make([]*Detection, 0, len(byID))
	for _, d := range byID {
		if d.Score >= t.s.EntryScore && t.find(d.Candidate) == nil {
			candidates = append(candidates, d)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Candidate < candidates[j].Candidate
	})
	for _, d := range candidates {
		if !t.CanAcceptMore() {
			weakest := t.weakest()
			if t.s.PreemptMargin < 0 || weakest < 0 || d.Score <= t.targets[weakest].Score+t.s.PreemptMargin {
				continue
			}
			res.Dropped = append(res.Dropped, t.targets[weakest].Candidate)
			t.targets = append(t.targets[:weakest], t.targets[weakest+1:]...)
			t.preemptions++
		}
		t.seq++
		t.targets = append(t.targets, &TrackedTarget{
			Candidate:  d.Candidate,
			Score:      d.Score,
			Position:   d.Position,
			AcquiredAt: now,
			LastSeen:   now,
			seq:        t.seq,
		})
		res.Added = append(res.Added, d.Candidate)
	}

	t.electPrimary()
	if t.primary == t.announced {
		t.pending = t.primary
	} else if t.primary == t.pending {
		res.PrimaryChanged = true
		res.PreviousPrimary = t.announced
		t.announced = t.primary
	} else {
		t.pending = t.primary
	}
	res.Primary = t.primary
	res.Targets = t.Targets()
	return res
}

// Targets returns copies of the tracked set, strongest first.
func (t *Tracker) Targets() []TrackedTarget {
	out := make([]TrackedTarget, 0, len(t.targets))
	for _, tt := range t.targets {
		out = append(out, *tt)
	}
	sortTargets(out)
	return out
}

// Primary returns the current primary target.
func (t *Tracker) Primary() (TrackedTarget, bool) {
	if tt := t.find(t.primary); tt != nil {
		return *tt, true
	}
	return TrackedTarget{}, false
}

// Find returns the tracked target for id.
func (t *Tracker) Find(id CandidateID) (TrackedTarget, bool) {
	if tt := t.find(id); tt != nil {
		return *tt, true
	}
	return TrackedTarget{}, false
}

// Nearest returns the tracked target closest to pos.
func (t *Tracker) Nearest(pos r3.Vec) (TrackedTarget, bool) {
	var best *TrackedTarget
	bestDist := 0.0
	for _, tt := range t.targets {
		if d := r3.Norm(r3.Sub(tt.Position, pos)); best == nil || d < bestDist {
			best, bestDist = tt, d
		}
	}
	if best == nil {
		return TrackedTarget{}, false
	}
	return *best, true
}

// InRange returns the tracked targets within radius of center, strongest
// first.
func (t *Tracker) InRange(center r3.Vec, radius float64) []TrackedTarget {
	return targetsWithin(t.Targets(), center, radius)
}

func targetsWithin(ts []TrackedTarget, center r3.Vec, radius float64) []TrackedTarget {
	var out []TrackedTarget
	for _, tt := range ts {
		if r3.Norm(r3.Sub(tt.Position, center)) <= radius {
			out = append(out, tt)
		}
	}
	return out
}

// Clear empties the set. The next primary change is reported normally.
func (t *Tracker) Clear() {
	clear(t.targets)
	t.targets = t.targets[:0]
	t.primary = 0
	t.pending = 0
}

func (t *Tracker) Stats() TrackingStats {
	return TrackingStats{
		Tracked:     len(t.targets),
		Capacity:    t.s.MaxTargets,
		Primary:     t.primary,
		Preemptions: t.preemptions,
	}
}

func (t *Tracker) find(id CandidateID) *TrackedTarget {
	if id == 0 {
		return nil
	}
	for _, tt := range t.targets {
		if tt.Candidate == id {
			return tt
		}
	}
	return nil
}

func (t *Tracker) weakest() int {
	idx := -1
	for i, tt := range t.targets {
		if idx < 0 || tt.Score < t.targets[idx].Score ||
			(tt.Score == t.targets[idx].Score && tt.seq < t.targets[idx].seq) {
			idx = i
		}
	}
	return idx
}

// electPrimary picks the highest score; ties go to the latest acquisition.
func (t *Tracker) electPrimary() {
	var best *TrackedTarget
	for _, tt := range t.targets {
		tt.IsPrimary = false
		if best == nil || tt.Score > best.Score || (tt.Score == best.Score && tt.seq > best.seq) {
			best = tt
		}
	}
	t.primary = 0
	if best != nil {
		best.IsPrimary = true
		t.primary = best.Candidate
	}
}

func sortTargets(ts []TrackedTarget) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Score != ts[j].Score {
			return ts[i].Score > ts[j].Score
		}
		return ts[i].seq > ts[j].seq
	})
}

func (t *Tracker) reconfigure(s TrackingSettings) {
	t.s = s
	for len(t.targets) > s.MaxTargets {
		w := t.weakest()
		t.targets = append(t.targets[:w], t.targets[w+1:]...)
	}
	t.electPrimary()
}
