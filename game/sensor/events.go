package sensor

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// EventSink receives flushed sensor events.
type EventSink interface {
	Deliver(rec EventRecord)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(rec EventRecord)

func (f SinkFunc) Deliver(rec EventRecord) { f(rec) }

// FanOut delivers every event to each sink in order.
type FanOut []EventSink

func (f FanOut) Deliver(rec EventRecord) {
	for _, s := range f {
		if s != nil {
			s.Deliver(rec)
		}
	}
}

// EventStats is a diagnostics snapshot of the event manager.
type EventStats struct {
	EventsBuffered      int           `json:"events_buffered"`
	EventsSentThisFrame int           `json:"events_sent_this_frame"`
	EventsSuppressed    int           `json:"events_suppressed"`
	EventsSent          int           `json:"events_sent"`
	CooldownTime        time.Duration `json:"cooldown_time"`
	BufferEnabled       bool          `json:"buffer_enabled"`
}

// eventKey is the cooldown identity of an event.
type eventKey struct {
	kind    EventKind
	subject int64
}

type cooldown struct {
	lim  *rate.Limiter
	last time.Time
}

// EventManager buffers events for one tick and suppresses repeats of the same
// kind and subject inside the cooldown window. Time is the sensor clock, set
// with SetNow before emitting.
type EventManager struct {
	s      EventSettings
	sensor uuid.UUID
	sink   EventSink
	now    time.Time

	cooldowns map[eventKey]*cooldown
	buffer    []EventRecord

	frameSent  int
	lastSent   int
	suppressed int
	sent       int
}

func NewEventManager(s EventSettings, sensor uuid.UUID, sink EventSink) *EventManager {
	return &EventManager{
		s:         s,
		sensor:    sensor,
		sink:      sink,
		cooldowns: make(map[eventKey]*cooldown),
		buffer:    make([]EventRecord, 0, s.MaxBufferSize),
	}
}

func (m *EventManager) SetNow(t time.Time) { m.now = t }

// Emit records an event. It returns false when the event was suppressed.
// With buffering disabled the event goes straight to the sink and is never
// suppressed.
func (m *EventManager) Emit(kind EventKind, subject int64, payload any) bool {
	rec := EventRecord{
		ID:        uuid.New(),
		Sensor:    m.sensor,
		Kind:      kind,
		Subject:   subject,
		Payload:   payload,
		Timestamp: m.now,
	}
	if !m.s.BufferEnabled {
		m.deliver(rec)
		return true
	}
	if !m.allow(eventKey{kind: kind, subject: subject}) {
		m.suppressed++
		return false
	}
	if len(m.buffer) >= m.s.MaxBufferSize && len(m.buffer) > 0 {
		m.deliver(m.buffer[0])
		m.buffer = append(m.buffer[:0], m.buffer[1:]...)
	}
	m.buffer = append(m.buffer, rec)
	return true
}

// FlushFrame delivers and returns this tick's buffered events in emission
// order.
func (m *EventManager) FlushFrame() []EventRecord {
	var out []EventRecord
	if len(m.buffer) > 0 {
		out = make([]EventRecord, len(m.buffer))
		copy(out, m.buffer)
		m.buffer = m.buffer[:0]
		for _, rec := range out {
			m.deliver(rec)
		}
	}
	m.lastSent = m.frameSent
	m.frameSent = 0

	for k, c := range m.cooldowns {
		if m.now.Sub(c.last) > m.s.CooldownTime {
			delete(m.cooldowns, k)
		}
	}
	return out
}

func (m *EventManager) Stats() EventStats {
	return EventStats{
		EventsBuffered:      len(m.buffer),
		EventsSentThisFrame: m.lastSent,
		EventsSuppressed:    m.suppressed,
		EventsSent:          m.sent,
		CooldownTime:        m.s.CooldownTime,
		BufferEnabled:       m.s.BufferEnabled,
	}
}

func (m *EventManager) allow(k eventKey) bool {
	if m.s.CooldownTime <= 0 {
		return true
	}
	c, ok := m.cooldowns[k]
	if !ok {
		c = &cooldown{lim: rate.NewLimiter(rate.Every(m.s.CooldownTime), 1)}
		m.cooldowns[k] = c
	}
	if !c.lim.AllowN(m.now, 1) {
		return false
	}
	c.last = m.now
	return true
}

func (m *EventManager) deliver(rec EventRecord) {
	m.frameSent++
	m.sent++
	if m.sink != nil {
		m.sink.Deliver(rec)
	}
}

func (m *EventManager) reconfigure(s EventSettings) {
	m.s = s
	if !s.BufferEnabled || len(m.buffer) > s.MaxBufferSize {
		m.FlushFrame()
	}
}
