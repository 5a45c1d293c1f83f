package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	dbmysql "github.com/kasuganosora/npcsensor/db/mysql"
	dbsqlite "github.com/kasuganosora/npcsensor/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeMemory = "memory" // private in-memory SQLite, gone on exit
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// Config selects and tunes the database.
type Config struct {
	Mode         string        `mapstructure:"mode"` // memory | sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg Config) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeMemory:
		// A named shared-cache DB keeps every pooled connection on the same data
		// while staying private to this call.
		return dbsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
