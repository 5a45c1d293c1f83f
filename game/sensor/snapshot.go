package sensor

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot is the immutable state of a sensor after one completed tick.
type Snapshot struct {
	Sensor            uuid.UUID        `json:"sensor"`
	Tick              uint64           `json:"tick"`
	Time              time.Time        `json:"time"`
	Alert             AlertState       `json:"alert"`
	TimeSinceStimulus time.Duration    `json:"time_since_stimulus"`
	Detected          []Detection      `json:"detected"`
	Tracked           []TrackedTarget  `json:"tracked"`
	Primary           *TrackedTarget   `json:"primary,omitempty"`
	CanTrackMore      bool             `json:"can_track_more"`
	Memory            []MemoryRecord   `json:"memory"`
	Performance       PerformanceStats `json:"performance"`
	Events            EventStats       `json:"events"`
	MemoryStats       MemoryStats      `json:"memory_stats"`
	Tracking          TrackingStats    `json:"tracking"`
	Flushed           []EventRecord    `json:"flushed,omitempty"`

	memory MemorySettings
}

// Record returns the memory record for id.
func (s *Snapshot) Record(id CandidateID) (MemoryRecord, bool) {
	for _, r := range s.Memory {
		if r.Candidate == id {
			return r, true
		}
	}
	return MemoryRecord{}, false
}

// Predict extrapolates id's position to the snapshot time.
func (s *Snapshot) Predict(id CandidateID) (r3.Vec, bool) {
	r, ok := s.Record(id)
	if !ok {
		return r3.Vec{}, false
	}
	return predict(r, s.Time, s.memory), true
}

func (s *Sensor) publish(flushed []EventRecord) {
	snap := &Snapshot{
		Sensor:            s.id,
		Tick:              s.ticks,
		Time:              s.clock,
		Alert:             s.alert.State(),
		TimeSinceStimulus: s.alert.TimeSinceStimulus(),
		Tracked:           s.tracker.Targets(),
		CanTrackMore:      s.tracker.CanAcceptMore(),
		Memory:            s.memory.Records(),
		Events:            s.events.Stats(),
		MemoryStats:       s.memory.Stats(),
		Tracking:          s.tracker.Stats(),
		Flushed:           flushed,
		memory:            s.settings.Memory,
	}
	snap.Detected = make([]Detection, len(s.detections))
	for i, d := range s.detections {
		snap.Detected[i] = *d
	}
	for i := range snap.Tracked {
		if snap.Tracked[i].IsPrimary {
			p := snap.Tracked[i]
			snap.Primary = &p
			break
		}
	}
	snap.Performance = s.perf.Stats(s.pool)
	snap.Performance.ActiveTargets = len(snap.Tracked)
	snap.Performance.PotentialTargets = s.potential
	s.snap.Store(snap)
}

// Snapshot returns the state after the last completed tick.
func (s *Sensor) Snapshot() *Snapshot { return s.snap.Load() }

func (s *Sensor) GetCurrentAlertLevel() Level { return s.Snapshot().Alert.Level }

func (s *Sensor) GetAlertState() AlertState { return s.Snapshot().Alert }

func (s *Sensor) GetAlertIntensity() float64 { return s.Snapshot().Alert.Intensity }

func (s *Sensor) GetAlertTimer() float64 { return s.Snapshot().Alert.Timer }

func (s *Sensor) GetAlertDecayRate() float64 { return s.Snapshot().Alert.DecayRate }

// GetDetectedTargets returns this tick's detections, strongest first.
func (s *Sensor) GetDetectedTargets() []Detection {
	return append([]Detection(nil), s.Snapshot().Detected...)
}

func (s *Sensor) GetTrackedTargets() []TrackedTarget {
	return append([]TrackedTarget(nil), s.Snapshot().Tracked...)
}

func (s *Sensor) GetPrimaryTarget() (TrackedTarget, bool) {
	if p := s.Snapshot().Primary; p != nil {
		return *p, true
	}
	return TrackedTarget{}, false
}

// GetTargetsInRange returns the tracked targets within radius of center.
func (s *Sensor) GetTargetsInRange(center r3.Vec, radius float64) []TrackedTarget {
	return targetsWithin(s.Snapshot().Tracked, center, radius)
}

func (s *Sensor) CanTrackMoreTargets() bool { return s.Snapshot().CanTrackMore }

func (s *Sensor) GetMemory(id CandidateID) (MemoryRecord, bool) { return s.Snapshot().Record(id) }

// GetPredictedPosition extrapolates a remembered candidate to the time of
// the last tick.
func (s *Sensor) GetPredictedPosition(id CandidateID) (r3.Vec, bool) {
	return s.Snapshot().Predict(id)
}

func (s *Sensor) GetPerformanceStats() PerformanceStats { return s.Snapshot().Performance }

func (s *Sensor) GetEventManagerStats() EventStats { return s.Snapshot().Events }

func (s *Sensor) GetMemoryStats() MemoryStats { return s.Snapshot().MemoryStats }

func (s *Sensor) GetTrackingStats() TrackingStats { return s.Snapshot().Tracking }
