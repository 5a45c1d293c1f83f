package sensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_PresetsAreValid(t *testing.T) {
	for name, s := range map[string]Settings{
		"default":     DefaultSettings(),
		"performance": PerformancePreset(),
		"balanced":    BalancedPreset(),
		"quality":     QualityPreset(),
	} {
		assert.NoError(t, s.Validate(), name)
	}
}

func TestSettings_InvertedThresholdsRejected(t *testing.T) {
	s := DefaultSettings()
	s.Alert.SuspiciousThreshold = 0.6
	s.Alert.InvestigatingThreshold = 0.5

	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSettings))
	assert.Contains(t, err.Error(), "suspicious_threshold")
}

func TestSettings_ReportsEveryProblem(t *testing.T) {
	s := DefaultSettings()
	s.Detection.SightRange = 0
	s.Tracking.MaxTargets = 0
	s.Memory.MaxEntries = -1
	s.Alert.AlertThreshold = 0.4

	err := s.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"sight_range", "max_targets", "max_entries", "alert_threshold"} {
		assert.Contains(t, msg, want)
	}
}

func TestSettings_ExitAboveEntryRejected(t *testing.T) {
	s := DefaultSettings()
	s.Tracking.ExitScore = s.Tracking.EntryScore + 0.1
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
}
