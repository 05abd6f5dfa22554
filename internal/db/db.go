package db

import (
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/washops/backend/internal/models"
)

// New creates a new GORM database connection using the provided DSN.
// postgres:// and postgresql:// DSNs use the postgres driver, anything else
// (file paths, "file:" URIs, ":memory:") is opened with sqlite.
func New(dsn string, verbose bool) (*gorm.DB, error) {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	gormLogger := logger.Default.LogMode(level)

	db, err := gorm.Open(dialector(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isPostgres(dsn) {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
	} else {
		sqlDB.SetMaxOpenConns(1)
	}

	log.Println("connected to database")
	return db, nil
}

// Migrate creates or updates the console's own tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ConsoleSession{}, &models.JobEvent{})
}

func dialector(dsn string) gorm.Dialector {
	if isPostgres(dsn) {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
