package sensor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Deps are the collaborators a sensor calls into. Only Spatial is required;
// without a Raycaster every candidate is treated as unoccluded.
type Deps struct {
	Spatial   SpatialQuery
	Raycaster Raycaster
	Evaluator ScoreEvaluator
	Sink      EventSink
	Logger    *zap.Logger

	// Epoch is the sensor clock at construction. Zero means the Unix epoch.
	Epoch time.Time
}

// Sighting is the payload of the spotted, lost and suspicious-activity events.
type Sighting struct {
	Candidate CandidateID `json:"candidate"`
	Score     float64     `json:"score"`
	Position  r3.Vec      `json:"position"`
}

// Sensor is one NPC's visual sensor. Tick and the mutating methods must be
// called from a single goroutine; the query methods are safe from any
// goroutine and always see the state of the last completed tick.
type Sensor struct {
	id       uuid.UUID
	logger   *zap.Logger
	deps     Deps
	settings Settings
	clock    time.Time
	ticks    uint64

	pool     *DetectionPool
	detector *Detector
	memory   *Memory
	tracker  *Tracker
	alert    *AlertSystem
	events   *EventManager
	perf     *PerformanceController

	detections []*Detection
	relevant   bool
	potential  int

	snap atomic.Pointer[Snapshot]
}

// New builds a sensor. Invalid settings and a missing spatial query are
// fatal here and never during ticking.
func New(settings Settings, deps Deps) (*Sensor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.Spatial == nil {
		return nil, fmt.Errorf("%w: spatial query", ErrNilDependency)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Epoch.IsZero() {
		deps.Epoch = time.Unix(0, 0).UTC()
	}

	s := &Sensor{
		id:    uuid.New(),
		deps:  deps,
		clock: deps.Epoch,
	}
	s.logger = deps.Logger.With(zap.String("sensor", s.id.String()))
	s.configure(settings)
	s.memory = NewMemory(settings.Memory, deps.Epoch)
	s.tracker = NewTracker(settings.Tracking)
	s.alert = NewAlertSystem(settings.Alert)
	s.events = NewEventManager(settings.Events, s.id, deps.Sink)
	s.publish(nil)
	return s, nil
}

func (s *Sensor) configure(settings Settings) {
	s.settings = settings
	p := settings.Performance
	s.pool = NewDetectionPool(p.PoolInitial, p.PoolCapacity, p.PoolEnabled)
	s.detector = NewDetector(settings.Detection, s.deps.Evaluator, s.pool, s.logger)
	s.perf = NewPerformanceController(p, settings.Detection)
}

func (s *Sensor) ID() uuid.UUID { return s.id }

// Now is the sensor clock.
func (s *Sensor) Now() time.Time { return s.clock }

func (s *Sensor) Settings() Settings { return s.settings }

// Tick runs the whole pipeline once: scan gate, detection, memory, tracking,
// alert and event flush. It returns the events flushed this tick.
func (s *Sensor) Tick(dt time.Duration, eye Pose) []EventRecord {
	if dt < 0 {
		dt = 0
	}
	s.ticks++
	s.clock = s.clock.Add(dt)
	s.events.SetNow(s.clock)

	level := s.alert.State().Level
	scan := false
	switch {
	case !eye.Valid():
		s.logger.Debug("sensor tick without a usable eye pose")
		s.loseAll()
	case s.perf.ShouldScan(dt, level, s.relevant || s.tracker.Stats().Tracked > 0):
		scan = true
		s.scan(eye)
	default:
		// Between scans the last detections stand in for a fresh scan.
		s.memory.Retain(s.detections, s.clock)
	}

	s.memory.Tick(dt)
	promoted, forgotten := s.memory.drainChanges()
	for _, id := range promoted {
		s.events.Emit(EventMemoryPromoted, int64(id), nil)
	}
	for _, id := range forgotten {
		s.events.Emit(EventMemoryForgotten, int64(id), nil)
	}

	if scan {
		s.track()
	}

	var best *Detection
	if len(s.detections) > 0 {
		best = s.detections[0]
	}
	bestScore := 0.0
	if best != nil {
		bestScore = best.Score
	}
	s.applyLevelChanges(s.alert.Update(bestScore, dt), best)

	flushed := s.events.FlushFrame()
	s.publish(flushed)
	return flushed
}

func (s *Sensor) scan(eye Pose) {
	prev := make(map[CandidateID]struct{}, len(s.detections))
	for _, d := range s.detections {
		prev[d.Candidate] = struct{}{}
	}
	s.pool.PutAll(s.detections)

	cands := s.deps.Spatial.CandidatesWithin(eye.Position, s.perf.QueryRadius())
	s.potential = len(cands)
	s.relevant = s.perf.Relevant(eye, cands)
	survivors := s.perf.Cull(eye, cands)
	s.detections = s.detector.Scan(eye, survivors, s.deps.Raycaster, s.clock)

	for _, d := range s.detections {
		if _, ok := prev[d.Candidate]; ok {
			delete(prev, d.Candidate)
			continue
		}
		s.events.Emit(EventTargetSpotted, int64(d.Candidate), Sighting{Candidate: d.Candidate, Score: d.Score, Position: d.Position})
	}
	for id := range prev {
		s.emitLost(id)
	}
	s.memory.Observe(s.detections)
}

// loseAll drops every current detection as if a scan had seen nothing.
func (s *Sensor) loseAll() {
	for _, d := range s.detections {
		s.emitLost(d.Candidate)
	}
	s.pool.PutAll(s.detections)
	s.detections = nil
	s.detector.resetDwell()
	s.perf.rescan()
}

func (s *Sensor) emitLost(id CandidateID) {
	sighting := Sighting{Candidate: id}
	if pos, ok := s.memory.LastKnownPosition(id); ok {
		sighting.Position = pos
	}
	s.events.Emit(EventTargetLost, int64(id), sighting)
}

func (s *Sensor) track() {
	res := s.tracker.Update(s.detections, s.clock)
	for _, id := range res.Added {
		s.events.Emit(EventTargetTracked, int64(id), nil)
	}
	for _, id := range res.Dropped {
		s.events.Emit(EventTargetDropped, int64(id), nil)
	}
	if res.PrimaryChanged {
		s.logger.Info("sensor primary target changed",
			zap.Int64("from", int64(res.PreviousPrimary)),
			zap.Int64("to", int64(res.Primary)))
		s.events.Emit(EventPrimaryChanged, int64(res.Primary), PrimaryChange{From: res.PreviousPrimary, To: res.Primary})
	}
}

func (s *Sensor) applyLevelChanges(changes []LevelChange, best *Detection) {
	for _, ch := range changes {
		s.logger.Info("sensor alert level changed",
			zap.Stringer("from", ch.From),
			zap.Stringer("to", ch.To),
			zap.Float64("intensity", ch.Intensity))
		s.events.Emit(EventAlertLevelChanged, int64(ch.To), ch)
		if ch.From == Suspicious && ch.To == Investigating && best != nil && best.Score >= s.settings.Detection.StrongDetectionScore {
			s.events.Emit(EventSuspiciousActivity, int64(best.Candidate), Sighting{
				Candidate: best.Candidate,
				Score:     best.Score,
				Position:  best.Position,
			})
		}
	}
}

// Stimulate feeds external suspicion, such as a heard noise, into the next
// tick. Negative and NaN amounts are ignored.
func (s *Sensor) Stimulate(amount float64) {
	if !finite(amount) || amount < 0 {
		s.logger.Debug("sensor ignored invalid stimulus", zap.Float64("amount", amount))
		return
	}
	s.alert.Stimulate(amount)
}

// TriggerMaxAlert raises the sensor to full alert. The transitions are
// flushed with the next tick.
func (s *Sensor) TriggerMaxAlert() {
	s.applyLevelChanges(s.alert.TriggerMaxAlert(), nil)
}

// ResetAlert calms the sensor down to Relaxed.
func (s *Sensor) ResetAlert() {
	s.applyLevelChanges(s.alert.Reset(), nil)
}

// ForgetTarget drops everything the sensor knows about id.
func (s *Sensor) ForgetTarget(id CandidateID) bool {
	return s.memory.Forget(id)
}

// UpdateSettings swaps in new settings. Invalid settings are rejected and
// the last valid configuration stays in effect.
func (s *Sensor) UpdateSettings(next Settings) error {
	if err := next.Validate(); err != nil {
		s.logger.Warn("sensor settings rejected, keeping last valid configuration", zap.Error(err))
		return err
	}
	s.pool.PutAll(s.detections)
	s.detections = nil
	s.configure(next)
	s.memory.reconfigure(next.Memory)
	s.tracker.reconfigure(next.Tracking)
	s.events.reconfigure(next.Events)
	s.applyLevelChanges(s.alert.reconfigure(next.Alert), nil)
	s.publish(nil)
	return nil
}

// Breakdown scores one candidate against an eye pose without side effects.
func (s *Sensor) Breakdown(eye Pose, c Candidate) (ScoreBreakdown, bool) {
	return s.detector.Breakdown(eye, c)
}

// CanSee reports whether the candidate would be visible from eye right now,
// including the occlusion ray.
func (s *Sensor) CanSee(eye Pose, c Candidate) bool {
	return s.detector.CanSee(eye, c, s.deps.Raycaster)
}
