package world

import (
	"fmt"
	"math"

	"github.com/kasuganosora/npcsensor/game/sensor"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// SpawnConfig describes how a room is populated.
type SpawnConfig struct {
	Actors     int     `mapstructure:"actors"`
	ActorSpeed float64 `mapstructure:"actor_speed"`
	Guards     int     `mapstructure:"guards"`
}

// Populate fills room with cfg.Actors wanderers and cfg.Guards guards at
// random open tiles. Every guard gets its own sensor built from settings and
// delivers to sink.
func Populate(room *Room, cfg SpawnConfig, settings sensor.Settings, sink sensor.EventSink) error {
	if room.grid == nil {
		return fmt.Errorf("%w: populate needs a grid", ErrBadGrid)
	}
	for i := 0; i < cfg.Actors; i++ {
		pos, ok := room.grid.RandomOpen(room.rng)
		if !ok {
			return fmt.Errorf("%w: no open tile", ErrBadGrid)
		}
		room.SpawnActor(pos, cfg.ActorSpeed)
	}
	for i := 0; i < cfg.Guards; i++ {
		pos, ok := room.grid.RandomOpen(room.rng)
		if !ok {
			return fmt.Errorf("%w: no open tile", ErrBadGrid)
		}
		h := room.rng.Float64() * 2 * math.Pi
		pose := sensor.Pose{Position: pos, Forward: r3.Vec{X: math.Cos(h), Y: math.Sin(h)}}
		if _, err := room.AddGuard(fmt.Sprintf("guard-%d-%d", room.ID, i+1), pose, settings, sink); err != nil {
			return err
		}
	}
	room.logger.Info("room populated",
		zap.Int("actors", cfg.Actors), zap.Int("guards", cfg.Guards))
	return nil
}
