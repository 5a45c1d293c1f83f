package sensor

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	got []EventRecord
}

func (r *recordingSink) Deliver(rec EventRecord) { r.got = append(r.got, rec) }

func newTestEvents(mut func(*EventSettings)) (*EventManager, *recordingSink) {
	s := DefaultSettings().Events
	if mut != nil {
		mut(&s)
	}
	sink := &recordingSink{}
	m := NewEventManager(s, uuid.New(), sink)
	m.SetNow(epoch)
	return m, sink
}

func TestEvents_SameKindInsideCooldownIsSuppressed(t *testing.T) {
	m, sink := newTestEvents(nil)

	assert.True(t, m.Emit(EventTargetSpotted, 1, nil))
	m.SetNow(epoch.Add(50 * time.Millisecond))
	assert.False(t, m.Emit(EventTargetSpotted, 1, nil))

	out := m.FlushFrame()
	require.Len(t, out, 1)
	assert.Equal(t, EventTargetSpotted, out[0].Kind)
	assert.Equal(t, epoch, out[0].Timestamp)
	assert.Len(t, sink.got, 1)

	st := m.Stats()
	assert.Equal(t, 1, st.EventsSuppressed)
	assert.Equal(t, 1, st.EventsSentThisFrame)
	assert.Equal(t, 0, st.EventsBuffered)
	assert.Equal(t, 100*time.Millisecond, st.CooldownTime)

	m.SetNow(epoch.Add(250 * time.Millisecond))
	assert.True(t, m.Emit(EventTargetSpotted, 1, nil))
	assert.Len(t, m.FlushFrame(), 1)
}

func TestEvents_SubjectsHaveIndependentCooldowns(t *testing.T) {
	m, _ := newTestEvents(nil)
	assert.True(t, m.Emit(EventTargetSpotted, 1, nil))
	assert.True(t, m.Emit(EventTargetSpotted, 2, nil))
	assert.True(t, m.Emit(EventTargetLost, 1, nil))
	assert.Len(t, m.FlushFrame(), 3)
}

func TestEvents_FlushKeepsEmissionOrder(t *testing.T) {
	m, sink := newTestEvents(nil)
	kinds := []EventKind{EventAlertLevelChanged, EventTargetSpotted, EventTargetTracked, EventPrimaryChanged}
	for _, k := range kinds {
		m.Emit(k, 0, nil)
	}
	assert.Equal(t, 4, m.Stats().EventsBuffered)
	assert.Empty(t, sink.got, "nothing is delivered before the flush")

	out := m.FlushFrame()
	require.Len(t, out, 4)
	for i, k := range kinds {
		assert.Equal(t, k, out[i].Kind)
		assert.Equal(t, k, sink.got[i].Kind)
	}
	assert.Empty(t, m.FlushFrame())
	assert.Equal(t, 0, m.Stats().EventsSentThisFrame)
}

func TestEvents_BufferDisabledDeliversImmediately(t *testing.T) {
	m, sink := newTestEvents(func(s *EventSettings) { s.BufferEnabled = false })

	assert.True(t, m.Emit(EventTargetSpotted, 1, nil))
	assert.True(t, m.Emit(EventTargetSpotted, 1, nil))
	assert.Len(t, sink.got, 2)
	assert.Empty(t, m.FlushFrame())

	st := m.Stats()
	assert.Equal(t, 0, st.EventsSuppressed)
	assert.Equal(t, 2, st.EventsSentThisFrame)
	assert.False(t, st.BufferEnabled)
}

func TestEvents_OverflowDeliversOldestEarly(t *testing.T) {
	m, sink := newTestEvents(func(s *EventSettings) { s.MaxBufferSize = 2 })
	m.Emit(EventTargetSpotted, 1, nil)
	m.Emit(EventTargetSpotted, 2, nil)
	m.Emit(EventTargetSpotted, 3, nil)

	require.Len(t, sink.got, 1)
	assert.Equal(t, int64(1), sink.got[0].Subject)

	out := m.FlushFrame()
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].Subject)
	assert.Equal(t, int64(3), out[1].Subject)
	assert.Equal(t, 3, m.Stats().EventsSentThisFrame)
}

func TestEvents_ZeroCooldownNeverSuppresses(t *testing.T) {
	m, _ := newTestEvents(func(s *EventSettings) { s.CooldownTime = 0 })
	for i := 0; i < 5; i++ {
		assert.True(t, m.Emit(EventTargetSpotted, 1, nil))
	}
	assert.Len(t, m.FlushFrame(), 5)
}

func TestFanOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	var calls int
	fan := FanOut{a, nil, b, SinkFunc(func(EventRecord) { calls++ })}
	fan.Deliver(EventRecord{Kind: EventTargetLost})
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, 1, calls)
}
