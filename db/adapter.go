package db

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kasuganosora/battleevent/config"
	dbmysql "github.com/kasuganosora/battleevent/db/mysql"
	dbsqlite "github.com/kasuganosora/battleevent/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMemory = "memory"
	ModeMySQL  = "mysql"
)

// Open returns a *gorm.DB for the configured database mode.
// Every memory database is private to the returned handle.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMemory:
		return dbsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	case ModeMySQL:
		return dbmysql.Open(cfg)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
