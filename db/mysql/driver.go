package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/battleevent/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pingTimeout = 5 * time.Second

// Open connects to MySQL and sizes the pool from cfg. The connection is
// pinged before returning so a bad DSN fails at startup.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.MySQLDSN == "" {
		return nil, errors.New("mysql: database.mysql_dsn is empty")
	}
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.MySQLDSN,
		DefaultStringSize: 255,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MySQLMaxOpen)
	sqlDB.SetMaxIdleConns(cfg.MySQLMaxIdle)
	sqlDB.SetConnMaxLifetime(cfg.MySQLMaxLife)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return db, nil
}
