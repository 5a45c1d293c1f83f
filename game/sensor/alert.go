package sensor

import (
	"math"
	"time"
)

// threshold is one row of the level table: intensity at or above Min puts the
// sensor at Level.
type threshold struct {
	Level Level
	Min   float64
}

// AlertSystem is the suspicion state machine. Level is always derived from
// intensity through an ascending threshold table.
type AlertSystem struct {
	s     AlertSettings
	table []threshold
	state AlertState

	pending       float64
	sinceStimulus time.Duration
}

func NewAlertSystem(s AlertSettings) *AlertSystem {
	return &AlertSystem{
		s: s,
		table: []threshold{
			{Level: Suspicious, Min: s.SuspiciousThreshold},
			{Level: Investigating, Min: s.InvestigatingThreshold},
			{Level: Alert, Min: s.AlertThreshold},
		},
		state: AlertState{Level: Relaxed, DecayRate: s.DecayRate},
	}
}

// LevelFor maps an intensity onto the threshold table.
func (a *AlertSystem) LevelFor(intensity float64) Level {
	level := Relaxed
	for _, t := range a.table {
		if intensity >= t.Min {
			level = t.Level
		}
	}
	return level
}

// Stimulate queues external suspicion, such as a heard noise, for the next
// Update. Negative and NaN amounts count as zero.
func (a *AlertSystem) Stimulate(amount float64) {
	if math.IsNaN(amount) || amount < 0 {
		return
	}
	a.pending += amount
}

// Update builds intensity from the best detection score this tick or decays
// it when nothing qualifies, then reports every level boundary crossed.
func (a *AlertSystem) Update(bestScore float64, dt time.Duration) []LevelChange {
	if dt < 0 {
		dt = 0
	}
	best := clamp01(bestScore)
	step := dt.Seconds()
	intensity := a.state.Intensity

	if best > 0 || a.pending > 0 {
		intensity += best*a.s.BuildRate*step + a.pending
		a.sinceStimulus = 0
	} else {
		a.sinceStimulus += dt
		if a.sinceStimulus >= a.s.DecayDelay {
			intensity -= a.s.DecayRate * step
		}
	}
	a.pending = 0
	return a.setIntensity(intensity, dt)
}

// TriggerMaxAlert jumps straight to full intensity.
func (a *AlertSystem) TriggerMaxAlert() []LevelChange {
	a.sinceStimulus = 0
	return a.setIntensity(1, 0)
}

// Reset calms the sensor down to Relaxed.
func (a *AlertSystem) Reset() []LevelChange {
	a.pending = 0
	return a.setIntensity(0, 0)
}

func (a *AlertSystem) State() AlertState { return a.state }

// TimeSinceStimulus is how long the sensor has gone without a qualifying
// detection or external stimulus.
func (a *AlertSystem) TimeSinceStimulus() time.Duration { return a.sinceStimulus }

func (a *AlertSystem) setIntensity(intensity float64, dt time.Duration) []LevelChange {
	a.state.Intensity = clamp01(intensity)
	next := a.LevelFor(a.state.Intensity)
	prev := a.state.Level
	if next == prev {
		a.state.Timer += dt.Seconds()
		return nil
	}

	var changes []LevelChange
	dir := Level(1)
	if next < prev {
		dir = -1
	}
	for l := prev; l != next; l += dir {
		changes = append(changes, LevelChange{From: l, To: l + dir, Intensity: a.state.Intensity})
	}
	a.state.Level = next
	a.state.Timer = 0
	return changes
}

func (a *AlertSystem) reconfigure(s AlertSettings) []LevelChange {
	intensity := a.state.Intensity
	next := NewAlertSystem(s)
	next.pending = a.pending
	next.sinceStimulus = a.sinceStimulus
	next.state.Level = a.state.Level
	next.state.Timer = a.state.Timer
	*a = *next
	return a.setIntensity(intensity, 0)
}
