package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
)

// Open connects to the translation database and migrates the schema.
// URLs starting with postgres:// select Postgres; anything else is a SQLite file path.
func Open(databaseURL string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		db, err = gorm.Open(postgres.Open(databaseURL), gormCfg)
	} else {
		db, err = openSQLite(databaseURL, gormCfg)
	}
	if err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")

	// Legacy rows are backfilled first so the unique lookup index can be built
	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("data migration: %w", err)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.TranslationRecord{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	log.Println("Database migration completed")
	return db, nil
}

func openSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer; background cache writes queue on the pool instead of
	// failing with "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
