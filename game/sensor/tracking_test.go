package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func scored(id CandidateID, score float64) *Detection {
	return &Detection{Candidate: id, Score: score, Timestamp: epoch, Position: r3.Vec{X: float64(id)}}
}

func primaries(ts []TrackedTarget) []CandidateID {
	var out []CandidateID
	for _, tt := range ts {
		if tt.IsPrimary {
			out = append(out, tt.Candidate)
		}
	}
	return out
}

func TestTracker_KeepsStrongestUpToCapacity(t *testing.T) {
	tr := NewTracker(DefaultSettings().Tracking)
	require.Equal(t, 5, tr.MaxTargets())

	var dets []*Detection
	for i := 1; i <= 25; i++ {
		dets = append(dets, scored(CandidateID(i), 0.5+float64(i)/100))
	}
	res := tr.Update(dets, epoch)

	require.Len(t, res.Targets, 5)
	ids := make([]CandidateID, 0, 5)
	for _, tt := range res.Targets {
		ids = append(ids, tt.Candidate)
	}
	assert.ElementsMatch(t, []CandidateID{25, 24, 23, 22, 21}, ids)
	assert.Equal(t, []CandidateID{25}, primaries(res.Targets))
	assert.False(t, tr.CanAcceptMore())

	p, ok := tr.Primary()
	require.True(t, ok)
	assert.Equal(t, CandidateID(25), p.Candidate)
}

func TestTracker_GracePeriod(t *testing.T) {
	s := DefaultSettings().Tracking
	tr := NewTracker(s)
	tr.Update([]*Detection{scored(1, 0.9)}, epoch)

	for i := 0; i < s.GraceTicks; i++ {
		res := tr.Update(nil, epoch)
		require.Len(t, res.Targets, 1, "dropped during grace at miss %d", i+1)
		assert.Equal(t, i+1, res.Targets[0].MissedTicks)
	}
	res := tr.Update(nil, epoch)
	assert.Empty(t, res.Targets)
	assert.Equal(t, []CandidateID{1}, res.Dropped)
	assert.Empty(t, primaries(res.Targets))
	_, ok := tr.Primary()
	assert.False(t, ok)
}

func TestTracker_EntryAndExitScores(t *testing.T) {
	s := DefaultSettings().Tracking
	tr := NewTracker(s)

	res := tr.Update([]*Detection{scored(1, s.EntryScore-0.01)}, epoch)
	assert.Empty(t, res.Targets)

	tr.Update([]*Detection{scored(1, s.EntryScore)}, epoch)
	res = tr.Update([]*Detection{scored(1, (s.EntryScore+s.ExitScore)/2)}, epoch)
	require.Len(t, res.Targets, 1, "hysteresis keeps the target between exit and entry")

	res = tr.Update([]*Detection{scored(1, s.ExitScore-0.01)}, epoch)
	assert.Empty(t, res.Targets)
	assert.Equal(t, []CandidateID{1}, res.Dropped)
}

func TestTracker_PrimaryTieGoesToLatestAcquisition(t *testing.T) {
	tr := NewTracker(DefaultSettings().Tracking)
	tr.Update([]*Detection{scored(1, 0.8)}, epoch)
	res := tr.Update([]*Detection{scored(1, 0.8), scored(2, 0.8)}, epoch)
	assert.Equal(t, []CandidateID{2}, primaries(res.Targets))
}

func TestTracker_PrimaryChangeIsDebounced(t *testing.T) {
	tr := NewTracker(DefaultSettings().Tracking)

	res := tr.Update([]*Detection{scored(1, 0.8)}, epoch)
	assert.False(t, res.PrimaryChanged)
	res = tr.Update([]*Detection{scored(1, 0.8)}, epoch)
	require.True(t, res.PrimaryChanged)
	assert.Equal(t, CandidateID(0), res.PreviousPrimary)
	assert.Equal(t, CandidateID(1), res.Primary)

	// a one-tick flicker to candidate 2 is never announced
	res = tr.Update([]*Detection{scored(1, 0.8), scored(2, 0.9)}, epoch)
	assert.False(t, res.PrimaryChanged)
	assert.Equal(t, CandidateID(2), res.Primary)
	res = tr.Update([]*Detection{scored(1, 0.9), scored(2, 0.8)}, epoch)
	assert.False(t, res.PrimaryChanged)

	// a change that holds is announced once
	res = tr.Update([]*Detection{scored(1, 0.7), scored(2, 0.9)}, epoch)
	assert.False(t, res.PrimaryChanged)
	res = tr.Update([]*Detection{scored(1, 0.7), scored(2, 0.9)}, epoch)
	require.True(t, res.PrimaryChanged)
	assert.Equal(t, CandidateID(1), res.PreviousPrimary)
	assert.Equal(t, CandidateID(2), res.Primary)
	res = tr.Update([]*Detection{scored(1, 0.7), scored(2, 0.9)}, epoch)
	assert.False(t, res.PrimaryChanged)
}

func TestTracker_DroppedPrimaryFallsBackToNextHighest(t *testing.T) {
	s := DefaultSettings().Tracking
	s.GraceTicks = 0
	tr := NewTracker(s)
	tr.Update([]*Detection{scored(1, 0.9), scored(2, 0.7), scored(3, 0.6)}, epoch)

	res := tr.Update([]*Detection{scored(2, 0.7), scored(3, 0.6)}, epoch)
	assert.Equal(t, []CandidateID{2}, primaries(res.Targets))
}

func TestTracker_Preemption(t *testing.T) {
	s := DefaultSettings().Tracking
	s.MaxTargets = 2
	tr := NewTracker(s)
	tr.Update([]*Detection{scored(1, 0.6), scored(2, 0.5)}, epoch)

	// not strong enough to displace anyone
	res := tr.Update([]*Detection{scored(1, 0.6), scored(2, 0.5), scored(3, 0.6)}, epoch)
	assert.Len(t, res.Targets, 2)
	assert.Empty(t, res.Added)

	res = tr.Update([]*Detection{scored(1, 0.6), scored(2, 0.5), scored(3, 0.95)}, epoch)
	assert.Equal(t, []CandidateID{3}, res.Added)
	assert.Equal(t, []CandidateID{2}, res.Dropped)
	assert.Equal(t, 1, tr.Stats().Preemptions)

	s.PreemptMargin = -1
	tr = NewTracker(s)
	tr.Update([]*Detection{scored(1, 0.6), scored(2, 0.5)}, epoch)
	res = tr.Update([]*Detection{scored(1, 0.6), scored(2, 0.5), scored(3, 1)}, epoch)
	assert.Empty(t, res.Added)
}

func TestTracker_FindNearestClear(t *testing.T) {
	tr := NewTracker(DefaultSettings().Tracking)
	tr.Update([]*Detection{scored(2, 0.8), scored(9, 0.7)}, epoch)

	got, ok := tr.Find(9)
	require.True(t, ok)
	assert.Equal(t, 0.7, got.Score)

	near, ok := tr.Nearest(r3.Vec{X: 8})
	require.True(t, ok)
	assert.Equal(t, CandidateID(9), near.Candidate)

	tr.Clear()
	assert.True(t, tr.CanAcceptMore())
	_, ok = tr.Primary()
	assert.False(t, ok)
}

func TestTracker_InRange(t *testing.T) {
	tr := NewTracker(DefaultSettings().Tracking)
	tr.Update([]*Detection{scored(1, 0.9), scored(4, 0.8), scored(9, 0.85)}, epoch)

	var ids []CandidateID
	for _, tt := range tr.InRange(r3.Vec{}, 5) {
		ids = append(ids, tt.Candidate)
	}
	assert.Equal(t, []CandidateID{1, 4}, ids)
	assert.Empty(t, tr.InRange(r3.Vec{X: 100}, 5))
}
