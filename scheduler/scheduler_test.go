package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNop() *zap.Logger { return zap.NewNop() }

func TestAddTicker_Fires(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("tick", 20*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})

	time.Sleep(120 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, func() { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, func() { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
	assert.Len(t, s.Stats(), 1)
}

func TestRemove(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("task", 20*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Remove("task")
	s.Remove("nope")
	snap := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count), "ticker must stop after Remove")
	assert.Empty(t, s.ListTickers())
}

func TestStop_StopsAllTickers(t *testing.T) {
	s := New(newNop())

	var c1, c2 int32
	s.AddTicker("a", 20*time.Millisecond, func() { atomic.AddInt32(&c1, 1) })
	s.AddTicker("b", 20*time.Millisecond, func() { atomic.AddInt32(&c2, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	s.Stop()
	time.Sleep(30 * time.Millisecond)
	snap1, snap2 := atomic.LoadInt32(&c1), atomic.LoadInt32(&c2)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&c1))
	assert.Equal(t, snap2, atomic.LoadInt32(&c2))
}

func TestListTickers_Sorted(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	require.Empty(t, s.ListTickers())
	s.AddTicker("room:2", time.Hour, func() {})
	s.AddTicker("room:1", time.Hour, func() {})
	assert.Equal(t, []string{"room:1", "room:2"}, s.ListTickers())
}

func TestStats_CountsRunsAndPanics(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var n int32
	s.AddTicker("flaky", 10*time.Millisecond, func() {
		if atomic.AddInt32(&n, 1)%2 == 0 {
			panic("oops")
		}
	})
	require.Eventually(t, func() bool {
		st := s.Stats()
		return len(st) == 1 && st[0].Runs >= 4
	}, time.Second, 5*time.Millisecond)

	st := s.Stats()[0]
	assert.Equal(t, "flaky", st.Name)
	assert.Equal(t, 10*time.Millisecond, st.Interval)
	assert.GreaterOrEqual(t, st.Panics, uint64(1), "the ticker keeps running after a panic")
}

func TestStats_Overruns(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	s.AddTicker("slow", 5*time.Millisecond, func() { time.Sleep(15 * time.Millisecond) })
	require.Eventually(t, func() bool {
		st := s.Stats()
		return len(st) == 1 && st[0].Overruns >= 1
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, s.Stats()[0].LastRun, 15*time.Millisecond)
}
