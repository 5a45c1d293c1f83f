package sensor

import (
	"math"
	"time"
)

// PerformanceStats is a diagnostics snapshot of the scan budget.
type PerformanceStats struct {
	ScanFrequency       float64 `json:"scan_frequency"`
	ActiveTargets       int     `json:"active_targets"`
	PotentialTargets    int     `json:"potential_targets"`
	PooledObjects       int     `json:"pooled_objects"`
	CulledThisFrame     int     `json:"culled_this_frame"`
	ScannedThisFrame    bool    `json:"scanned_this_frame"`
	Scans               int     `json:"scans"`
	SkippedTicks        int     `json:"skipped_ticks"`
	LODEnabled          bool    `json:"lod_enabled"`
	EarlyCullingEnabled bool    `json:"early_culling_enabled"`
	PoolEnabled         bool    `json:"pool_enabled"`
}

// levelFrequencyMix is how far each level sits between the base and the
// alert scan frequency.
var levelFrequencyMix = map[Level]float64{
	Relaxed:       0,
	Suspicious:    0.5,
	Investigating: 0.7,
	Alert:         1,
}

// PerformanceController gates full scans by relevance and alert level and
// culls candidates before they reach the detector.
type PerformanceController struct {
	s   PerformanceSettings
	det DetectionSettings

	frequency float64
	sinceScan time.Duration
	started   bool

	culled  int
	scanned bool
	scans   int
	skipped int
}

func NewPerformanceController(s PerformanceSettings, det DetectionSettings) *PerformanceController {
	return &PerformanceController{s: s, det: det, frequency: s.BaseScanFrequency}
}

// FrequencyFor returns the scan rate for the given state.
func (p *PerformanceController) FrequencyFor(level Level, relevant bool) float64 {
	if level == Relaxed && !relevant {
		return p.s.IdleScanFrequency
	}
	mix := levelFrequencyMix[level]
	return p.s.BaseScanFrequency + (p.s.AlertScanFrequency-p.s.BaseScanFrequency)*mix
}

// ShouldScan advances the scan timer by dt and reports whether this tick
// performs a full scan. The first tick always scans; a rise in frequency
// scans at once. With LOD disabled every tick scans.
func (p *PerformanceController) ShouldScan(dt time.Duration, level Level, relevant bool) bool {
	freq := p.FrequencyFor(level, relevant)
	raised := freq > p.frequency
	p.frequency = freq
	if !p.s.LODEnabled {
		p.mark(true)
		return true
	}

	p.sinceScan += dt
	period := time.Duration(float64(time.Second) / freq)
	if !p.started || raised || p.sinceScan >= period {
		p.started = true
		p.sinceScan -= period
		if p.sinceScan < 0 || p.sinceScan >= period {
			p.sinceScan = 0
		}
		p.mark(true)
		return true
	}
	p.mark(false)
	return false
}

// rescan makes the next ShouldScan call scan regardless of the timer.
func (p *PerformanceController) rescan() { p.started = false }

// QueryRadius is the radius the host is asked to search around the eye.
func (p *PerformanceController) QueryRadius() float64 {
	r := p.det.SightRange
	if p.s.EarlyCullingEnabled {
		r *= p.s.CullMargin
	}
	return math.Max(r, p.s.RelevanceRadius)
}

// Cull drops candidates that cannot possibly be detected: invalid handles,
// anything beyond the padded sight range and anything behind the cone.
func (p *PerformanceController) Cull(eye Pose, candidates []Candidate) []Candidate {
	p.culled = 0
	if !p.s.EarlyCullingEnabled || !eye.Valid() {
		return candidates
	}
	maxDist := p.det.SightRange * p.s.CullMargin
	halfFOV := p.det.FieldOfView / 2
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Valid() {
			p.culled++
			continue
		}
		dist, angle := geometry(eye, c.Position)
		if dist > maxDist || angle > halfFOV {
			p.culled++
			continue
		}
		out = append(out, c)
	}
	return out
}

// Relevant reports whether any candidate is within the relevance radius.
func (p *PerformanceController) Relevant(eye Pose, candidates []Candidate) bool {
	for _, c := range candidates {
		if c.Valid() && distance(eye, c) <= p.s.RelevanceRadius {
			return true
		}
	}
	return false
}

func (p *PerformanceController) Stats(pool *DetectionPool) PerformanceStats {
	st := PerformanceStats{
		ScanFrequency:       p.frequency,
		CulledThisFrame:     p.culled,
		ScannedThisFrame:    p.scanned,
		Scans:               p.scans,
		SkippedTicks:        p.skipped,
		LODEnabled:          p.s.LODEnabled,
		EarlyCullingEnabled: p.s.EarlyCullingEnabled,
		PoolEnabled:         p.s.PoolEnabled,
	}
	if pool != nil {
		st.PooledObjects = pool.Available()
	}
	return st
}

func (p *PerformanceController) mark(scan bool) {
	p.scanned = scan
	if scan {
		p.scans++
	} else {
		p.skipped++
		p.culled = 0
	}
}

func distance(eye Pose, c Candidate) float64 {
	d, _ := geometry(eye, c.Position)
	return d
}
