package sensor

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Settings configures one sensor instance. Every field is decodable by viper.
type Settings struct {
	Detection   DetectionSettings   `mapstructure:"detection"`
	Memory      MemorySettings      `mapstructure:"memory"`
	Tracking    TrackingSettings    `mapstructure:"tracking"`
	Alert       AlertSettings       `mapstructure:"alert"`
	Events      EventSettings       `mapstructure:"events"`
	Performance PerformanceSettings `mapstructure:"performance"`
}

type DetectionSettings struct {
	SightRange            float64       `mapstructure:"sight_range"`
	FieldOfView           float64       `mapstructure:"field_of_view"` // degrees, full cone
	MinDetectionScore     float64       `mapstructure:"min_detection_score"`
	StrongDetectionScore  float64       `mapstructure:"strong_detection_score"`
	InstantDetectionRange float64       `mapstructure:"instant_detection_range"`
	OptimalAngle          float64       `mapstructure:"optimal_angle"` // degrees off forward
	DwellFull             time.Duration `mapstructure:"dwell_full"`
	ScoreMultiplier       float64       `mapstructure:"score_multiplier"`
	CrouchMultiplier      float64       `mapstructure:"crouch_multiplier"`
	NoiseMultiplier       float64       `mapstructure:"noise_multiplier"`
}

type MemorySettings struct {
	MaxEntries            int           `mapstructure:"max_entries"`
	ConfidenceDecay       float64       `mapstructure:"confidence_decay"` // per second
	LongTermDecayFactor   float64       `mapstructure:"long_term_decay_factor"`
	PromotionAge          time.Duration `mapstructure:"promotion_age"`
	MaxExtrapolation      time.Duration `mapstructure:"max_extrapolation"`
	MaxPredictionDistance float64       `mapstructure:"max_prediction_distance"` // 0 disables the cap
}

type TrackingSettings struct {
	MaxTargets    int     `mapstructure:"max_targets"`
	EntryScore    float64 `mapstructure:"entry_score"`
	ExitScore     float64 `mapstructure:"exit_score"`
	GraceTicks    int     `mapstructure:"grace_ticks"`
	PreemptMargin float64 `mapstructure:"preempt_margin"` // negative disables preemption
}

type AlertSettings struct {
	SuspiciousThreshold    float64       `mapstructure:"suspicious_threshold"`
	InvestigatingThreshold float64       `mapstructure:"investigating_threshold"`
	AlertThreshold         float64       `mapstructure:"alert_threshold"`
	BuildRate              float64       `mapstructure:"build_rate"`
	DecayRate              float64       `mapstructure:"decay_rate"`
	DecayDelay             time.Duration `mapstructure:"decay_delay"`
}

type EventSettings struct {
	BufferEnabled bool          `mapstructure:"buffer_enabled"`
	CooldownTime  time.Duration `mapstructure:"cooldown_time"`
	MaxBufferSize int           `mapstructure:"max_buffer_size"`
}

type PerformanceSettings struct {
	LODEnabled          bool    `mapstructure:"lod_enabled"`
	EarlyCullingEnabled bool    `mapstructure:"early_culling_enabled"`
	PoolEnabled         bool    `mapstructure:"pool_enabled"`
	BaseScanFrequency   float64 `mapstructure:"base_scan_frequency"`  // Hz
	AlertScanFrequency  float64 `mapstructure:"alert_scan_frequency"` // Hz
	IdleScanFrequency   float64 `mapstructure:"idle_scan_frequency"`  // Hz
	RelevanceRadius     float64 `mapstructure:"relevance_radius"`
	CullMargin          float64 `mapstructure:"cull_margin"`
	PoolInitial         int     `mapstructure:"pool_initial"`
	PoolCapacity        int     `mapstructure:"pool_capacity"`
}

// DefaultSettings returns the balanced preset.
func DefaultSettings() Settings { return BalancedPreset() }

func BalancedPreset() Settings {
	return Settings{
		Detection: DetectionSettings{
			SightRange:            15,
			FieldOfView:           110,
			MinDetectionScore:     0.3,
			StrongDetectionScore:  0.7,
			InstantDetectionRange: 2,
			OptimalAngle:          30,
			DwellFull:             2 * time.Second,
			ScoreMultiplier:       1,
			CrouchMultiplier:      0.6,
			NoiseMultiplier:       1.25,
		},
		Memory: MemorySettings{
			MaxEntries:            20,
			ConfidenceDecay:       0.1,
			LongTermDecayFactor:   0.5,
			PromotionAge:          5 * time.Second,
			MaxExtrapolation:      2 * time.Second,
			MaxPredictionDistance: 5,
		},
		Tracking: TrackingSettings{
			MaxTargets:    5,
			EntryScore:    0.4,
			ExitScore:     0.35,
			GraceTicks:    3,
			PreemptMargin: 0.15,
		},
		Alert: AlertSettings{
			SuspiciousThreshold:    0.25,
			InvestigatingThreshold: 0.5,
			AlertThreshold:         0.75,
			BuildRate:              1,
			DecayRate:              0.2,
		},
		Events: EventSettings{
			BufferEnabled: true,
			CooldownTime:  100 * time.Millisecond,
			MaxBufferSize: 32,
		},
		Performance: PerformanceSettings{
			LODEnabled:          true,
			EarlyCullingEnabled: true,
			PoolEnabled:         true,
			BaseScanFrequency:   15,
			AlertScanFrequency:  20,
			IdleScanFrequency:   2,
			RelevanceRadius:     30,
			CullMargin:          1.2,
			PoolInitial:         20,
			PoolCapacity:        50,
		},
	}
}

// PerformancePreset trades fidelity for cost on crowded maps.
func PerformancePreset() Settings {
	s := BalancedPreset()
	s.Tracking.MaxTargets = 3
	s.Memory.MaxEntries = 10
	s.Performance.BaseScanFrequency = 10
	s.Performance.AlertScanFrequency = 15
	s.Performance.IdleScanFrequency = 1
	s.Performance.RelevanceRadius = 20
	return s
}

// QualityPreset scans every tick and remembers more.
func QualityPreset() Settings {
	s := BalancedPreset()
	s.Tracking.MaxTargets = 8
	s.Memory.MaxEntries = 40
	s.Performance.LODEnabled = false
	s.Performance.BaseScanFrequency = 30
	s.Performance.AlertScanFrequency = 30
	s.Performance.PoolCapacity = 100
	return s
}

// Validate reports every inconsistency at once. The returned error wraps
// ErrInvalidSettings.
func (s Settings) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}

	d := s.Detection
	check(d.SightRange > 0, "detection.sight_range must be positive, got %v", d.SightRange)
	check(d.FieldOfView > 0 && d.FieldOfView <= 360, "detection.field_of_view must be in (0, 360], got %v", d.FieldOfView)
	check(d.MinDetectionScore >= 0 && d.MinDetectionScore <= 1, "detection.min_detection_score must be in [0, 1], got %v", d.MinDetectionScore)
	check(d.StrongDetectionScore >= d.MinDetectionScore && d.StrongDetectionScore <= 1,
		"detection.strong_detection_score must be in [min_detection_score, 1], got %v", d.StrongDetectionScore)
	check(d.InstantDetectionRange >= 0, "detection.instant_detection_range must not be negative")
	check(d.OptimalAngle >= 0, "detection.optimal_angle must not be negative")
	check(d.DwellFull > 0, "detection.dwell_full must be positive")
	check(d.ScoreMultiplier > 0, "detection.score_multiplier must be positive")
	check(d.CrouchMultiplier >= 0 && d.NoiseMultiplier >= 0, "detection stealth multipliers must not be negative")

	m := s.Memory
	check(m.MaxEntries > 0, "memory.max_entries must be positive, got %d", m.MaxEntries)
	check(m.ConfidenceDecay > 0, "memory.confidence_decay must be positive, got %v", m.ConfidenceDecay)
	check(m.LongTermDecayFactor > 0 && m.LongTermDecayFactor <= 1, "memory.long_term_decay_factor must be in (0, 1], got %v", m.LongTermDecayFactor)
	check(m.PromotionAge >= 0, "memory.promotion_age must not be negative")
	check(m.MaxExtrapolation >= 0, "memory.max_extrapolation must not be negative")
	check(m.MaxPredictionDistance >= 0, "memory.max_prediction_distance must not be negative")

	t := s.Tracking
	check(t.MaxTargets > 0, "tracking.max_targets must be positive, got %d", t.MaxTargets)
	check(t.EntryScore >= 0 && t.EntryScore <= 1, "tracking.entry_score must be in [0, 1], got %v", t.EntryScore)
	check(t.ExitScore >= 0 && t.ExitScore <= t.EntryScore, "tracking.exit_score must be in [0, entry_score], got %v", t.ExitScore)
	check(t.GraceTicks >= 0, "tracking.grace_ticks must not be negative")

	a := s.Alert
	check(a.SuspiciousThreshold > 0, "alert.suspicious_threshold must be positive, got %v", a.SuspiciousThreshold)
	check(a.SuspiciousThreshold < a.InvestigatingThreshold,
		"alert.suspicious_threshold (%v) must be below investigating_threshold (%v)", a.SuspiciousThreshold, a.InvestigatingThreshold)
	check(a.InvestigatingThreshold < a.AlertThreshold,
		"alert.investigating_threshold (%v) must be below alert_threshold (%v)", a.InvestigatingThreshold, a.AlertThreshold)
	check(a.AlertThreshold <= 1, "alert.alert_threshold must not exceed 1, got %v", a.AlertThreshold)
	check(a.BuildRate >= 0 && a.DecayRate >= 0, "alert rates must not be negative")
	check(a.DecayDelay >= 0, "alert.decay_delay must not be negative")

	e := s.Events
	check(e.CooldownTime >= 0, "events.cooldown_time must not be negative")
	check(e.MaxBufferSize > 0, "events.max_buffer_size must be positive, got %d", e.MaxBufferSize)

	p := s.Performance
	check(p.IdleScanFrequency > 0, "performance.idle_scan_frequency must be positive")
	check(p.IdleScanFrequency <= p.BaseScanFrequency && p.BaseScanFrequency <= p.AlertScanFrequency,
		"performance scan frequencies must satisfy idle <= base <= alert")
	check(p.RelevanceRadius >= 0, "performance.relevance_radius must not be negative")
	check(p.CullMargin >= 1, "performance.cull_margin must be at least 1, got %v", p.CullMargin)
	check(p.PoolInitial >= 0 && p.PoolInitial <= p.PoolCapacity, "performance pool sizes must satisfy 0 <= initial <= capacity")

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}
