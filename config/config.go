package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/npcsensor/cache"
	"github.com/kasuganosora/npcsensor/db"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/kasuganosora/npcsensor/game/world"
	"github.com/kasuganosora/npcsensor/journal"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database db.Config       `mapstructure:"database"`
	Cache    CacheConfig     `mapstructure:"cache"`
	World    WorldConfig     `mapstructure:"world"`
	Journal  journal.Config  `mapstructure:"journal"`
	Sensor   sensor.Settings `mapstructure:"sensor"`
}

type ServerConfig struct {
	Port           int     `mapstructure:"port"`
	Debug          bool    `mapstructure:"debug"`
	AdminKey       string  `mapstructure:"admin_key"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type CacheConfig struct {
	cache.CacheConfig `mapstructure:",squash"`

	SnapshotTTL      time.Duration         `mapstructure:"snapshot_ttl"`
	SnapshotInterval time.Duration         `mapstructure:"snapshot_interval"`
	Publisher        cache.PublisherConfig `mapstructure:"publisher"`
}

// WorldConfig describes the sandbox rooms the server simulates.
type WorldConfig struct {
	Rooms         int           `mapstructure:"rooms"`
	Width         int           `mapstructure:"width"`
	Height        int           `mapstructure:"height"`
	CellSize      float64       `mapstructure:"cell_size"`
	Seed          int64         `mapstructure:"seed"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`

	// Layout, when set, replaces the generated walled grid. See world.ParseGrid.
	Layout []string `mapstructure:"layout"`

	Room  world.RoomConfig  `mapstructure:"room"`
	Spawn world.SpawnConfig `mapstructure:"spawn"`
}

// Defaults returns a Config with every section at its default.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, RateLimitRPS: 50, RateLimitBurst: 100},
		Database: db.Config{
			Mode:         db.ModeMemory,
			SQLitePath:   "./data/sensor.db",
			MySQLMaxOpen: 20,
			MySQLMaxIdle: 5,
			MySQLMaxLife: time.Hour,
		},
		Cache: CacheConfig{
			CacheConfig:      cache.CacheConfig{LocalGCInterval: 30 * time.Second, LocalPubSubBuf: 256},
			SnapshotTTL:      10 * time.Second,
			SnapshotInterval: time.Second,
			Publisher:        cache.PublisherConfig{QueueSize: 1024, Recent: 50, RecentTTL: 10 * time.Minute},
		},
		World: WorldConfig{
			Rooms:         1,
			Width:         40,
			Height:        30,
			CellSize:      1,
			Seed:          1,
			StatsInterval: 10 * time.Second,
			Room:          world.DefaultRoomConfig(),
			Spawn:         world.SpawnConfig{Actors: 8, ActorSpeed: 1.4, Guards: 3},
		},
		Journal: journal.DefaultConfig(),
		Sensor:  sensor.DefaultSettings(),
	}
}

// Load reads config from the given YAML file path. Keys missing from the
// file keep their Defaults value.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NPCSENSOR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section, the sensor settings included.
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}
	switch c.Database.Mode {
	case db.ModeMemory, db.ModeSQLite, db.ModeMySQL:
	default:
		check(false, "database.mode %q is not memory, sqlite or mysql", c.Database.Mode)
	}
	check(c.Database.Mode != db.ModeMySQL || c.Database.MySQLDSN != "", "database.mysql_dsn is required in mysql mode")
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	check(c.World.Rooms >= 0, "world.rooms must not be negative")
	check(len(c.World.Layout) > 0 || (c.World.Width >= 3 && c.World.Height >= 3), "world.width and world.height must be at least 3")
	check(c.World.CellSize > 0, "world.cell_size must be positive")
	check(c.World.Room.TickInterval > 0, "world.room.tick_interval must be positive")
	errs = multierr.Append(errs, c.Sensor.Validate())

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}
