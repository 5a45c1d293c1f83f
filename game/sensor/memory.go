package sensor

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// MemoryStats is a diagnostics snapshot of the memory arena.
type MemoryStats struct {
	Records   int `json:"records"`
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
	Capacity  int `json:"capacity"`
	Evictions int `json:"evictions"`
}

type memoryEntry struct {
	MemoryRecord
	refreshed bool
}

// Memory keeps a bounded set of beliefs about candidates the sensor has seen.
type Memory struct {
	s       MemorySettings
	now     time.Time
	entries map[CandidateID]*memoryEntry

	evictions int
	promoted  []CandidateID
	forgotten []CandidateID
}

// NewMemory creates an empty arena whose clock starts at epoch.
func NewMemory(s MemorySettings, epoch time.Time) *Memory {
	return &Memory{
		s:       s,
		now:     epoch,
		entries: make(map[CandidateID]*memoryEntry, s.MaxEntries),
	}
}

// Observe creates or refreshes one record per detection. A refreshed record
// is back at full confidence and is not decayed by the following Tick. When
// the arena is full only records not refreshed this tick are evicted; with
// none left the incoming detection is dropped, so the strongest detections
// of a scan win.
func (m *Memory) Observe(dets []*Detection) {
	for _, d := range dets {
		if d == nil || d.Candidate == 0 {
			continue
		}
		m.observe(d.Candidate, d.Position, d.Velocity, d.Timestamp)
	}
}

// Retain refreshes the records of candidates still in view on a tick that
// skipped the full scan. Positions are carried forward along the detected
// velocity to now.
func (m *Memory) Retain(dets []*Detection, now time.Time) {
	for _, d := range dets {
		if d == nil || d.Candidate == 0 {
			continue
		}
		pos := d.Position
		if elapsed := now.Sub(d.Timestamp); elapsed > 0 {
			pos = r3.Add(pos, r3.Scale(elapsed.Seconds(), d.Velocity))
		}
		m.observe(d.Candidate, pos, d.Velocity, now)
	}
}

func (m *Memory) observe(id CandidateID, pos, vel r3.Vec, at time.Time) {
	e, ok := m.entries[id]
	if !ok {
		if len(m.entries) >= m.s.MaxEntries && !m.evictWeakest(true) {
			return
		}
		e = &memoryEntry{MemoryRecord: MemoryRecord{
			Candidate: id,
			Tier:      ShortTerm,
			FirstSeen: at,
		}}
		m.entries[id] = e
	}
	e.Confidence = 1
	e.Position = pos
	e.Velocity = vel
	e.LastUpdate = at
	e.Sightings++
	e.refreshed = true
}

// Tick advances the memory clock by dt, decays confidence, promotes aged
// short-term records and forgets records whose confidence reached zero.
func (m *Memory) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	m.now = m.now.Add(dt)
	step := dt.Seconds()

	for id, e := range m.entries {
		if e.refreshed {
			e.refreshed = false
		} else {
			rate := m.s.ConfidenceDecay
			if e.Tier == LongTerm {
				rate *= m.s.LongTermDecayFactor
			}
			e.Confidence -= rate * step
		}
		if e.Confidence <= 0 {
			delete(m.entries, id)
			m.forgotten = append(m.forgotten, id)
			continue
		}
		if e.Tier == ShortTerm && m.now.Sub(e.FirstSeen) >= m.s.PromotionAge {
			e.Tier = LongTerm
			m.promoted = append(m.promoted, id)
		}
	}
}

// Get returns the record for id, if any.
func (m *Memory) Get(id CandidateID) (MemoryRecord, bool) {
	e, ok := m.entries[id]
	if !ok {
		return MemoryRecord{}, false
	}
	return e.MemoryRecord, true
}

// PredictPosition extrapolates the last known position along the last known
// velocity. ok is false for unknown candidates.
func (m *Memory) PredictPosition(id CandidateID) (r3.Vec, bool) {
	e, ok := m.entries[id]
	if !ok {
		return r3.Vec{}, false
	}
	return predict(e.MemoryRecord, m.now, m.s), true
}

// LastKnownPosition returns where id was last seen.
func (m *Memory) LastKnownPosition(id CandidateID) (r3.Vec, bool) {
	e, ok := m.entries[id]
	if !ok {
		return r3.Vec{}, false
	}
	return e.Position, true
}

// Forget drops the record for id.
func (m *Memory) Forget(id CandidateID) bool {
	if _, ok := m.entries[id]; !ok {
		return false
	}
	delete(m.entries, id)
	return true
}

func (m *Memory) Clear() {
	clear(m.entries)
	m.promoted = m.promoted[:0]
	m.forgotten = m.forgotten[:0]
}

// Records returns copies of every record, most confident first.
func (m *Memory) Records() []MemoryRecord {
	out := make([]MemoryRecord, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.MemoryRecord)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Candidate < out[j].Candidate
	})
	return out
}

func (m *Memory) Len() int { return len(m.entries) }

// Now is the memory clock.
func (m *Memory) Now() time.Time { return m.now }

func (m *Memory) Stats() MemoryStats {
	st := MemoryStats{Records: len(m.entries), Capacity: m.s.MaxEntries, Evictions: m.evictions}
	for _, e := range m.entries {
		if e.Tier == LongTerm {
			st.LongTerm++
		} else {
			st.ShortTerm++
		}
	}
	return st
}

// drainChanges hands the promotions and removals since the last call to the
// facade for event emission.
func (m *Memory) drainChanges() (promoted, forgotten []CandidateID) {
	promoted, forgotten = m.promoted, m.forgotten
	m.promoted, m.forgotten = nil, nil
	return promoted, forgotten
}

// evictWeakest removes the least confident record; ties go to the stalest.
// With spareRefreshed set, records refreshed since the last Tick are never
// chosen.
func (m *Memory) evictWeakest(spareRefreshed bool) bool {
	var victim *memoryEntry
	for _, e := range m.entries {
		if spareRefreshed && e.refreshed {
			continue
		}
		if victim == nil ||
			e.Confidence < victim.Confidence ||
			(e.Confidence == victim.Confidence && e.LastUpdate.Before(victim.LastUpdate)) ||
			(e.Confidence == victim.Confidence && e.LastUpdate.Equal(victim.LastUpdate) && e.Candidate < victim.Candidate) {
			victim = e
		}
	}
	if victim == nil {
		return false
	}
	delete(m.entries, victim.Candidate)
	m.evictions++
	return true
}

func predict(rec MemoryRecord, now time.Time, s MemorySettings) r3.Vec {
	elapsed := now.Sub(rec.LastUpdate)
	if elapsed <= 0 {
		return rec.Position
	}
	if elapsed > s.MaxExtrapolation {
		elapsed = s.MaxExtrapolation
	}
	disp := r3.Scale(elapsed.Seconds(), rec.Velocity)
	if n := r3.Norm(disp); s.MaxPredictionDistance > 0 && n > s.MaxPredictionDistance {
		disp = r3.Scale(s.MaxPredictionDistance/n, disp)
	}
	return r3.Add(rec.Position, disp)
}

func (m *Memory) reconfigure(s MemorySettings) {
	m.s = s
	for len(m.entries) > s.MaxEntries {
		if !m.evictWeakest(false) {
			return
		}
	}
}
