package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgermail/core/internal/config"
	"github.com/ledgermail/core/internal/database/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Connect opens the database selected by the configuration and migrates it
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}

	switch strings.ToLower(cfg.DatabaseDriver) {
	case "", DriverSQLite:
		return openSQLite(cfg.DatabasePath, gormConfig)
	case DriverPostgres:
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("database_dsn is required for the postgres driver")
		}
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormConfig)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(db); err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// Initialize creates a SQLite database at dbPath and migrates it
func Initialize(dbPath string) (*gorm.DB, error) {
	return openSQLite(dbPath, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func openSQLite(dbPath string, gormConfig *gorm.Config) (*gorm.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// gormLogLevel maps the application log level onto the gorm logger
func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return logger.Info
	case "ERROR":
		return logger.Error
	default:
		return logger.Warn
	}
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Label{},
		&models.Email{},
		&models.Attachment{},
		&models.EmailLabel{},
		&models.Log{},
	); err != nil {
		return err
	}

	// Rows written before the status column had a default
	if res := db.Model(&models.Email{}).Where("status = '' OR status IS NULL").Update("status", models.StatusPending); res.Error != nil {
		log.Printf("[Migration] Warning: failed to backfill email status: %v", res.Error)
	} else if res.RowsAffected > 0 {
		log.Printf("[Migration] Backfilled status on %d emails", res.RowsAffected)
	}

	if res := db.Model(&models.Email{}).Where("category = '' OR category IS NULL").Update("category", models.DefaultCategory); res.Error != nil {
		log.Printf("[Migration] Warning: failed to backfill email category: %v", res.Error)
	}

	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
