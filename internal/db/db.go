package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schedule-sync-backend/config"
	"schedule-sync-backend/internal/model"
)

// KVEntry is one row of the local key/value store.
type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     []byte    `gorm:"not null"`
	Version   string    `gorm:"size:16"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// gormLogger sends gorm's warnings and slow queries through logrus. A lookup
// that finds no row is not logged.
func gormLogger() logger.Interface {
	return logger.New(logrus.StandardLogger(), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// InitLocal opens the sqlite database backing the local store and migrates
// its tables.
func InitLocal(cfg *config.LocalConfig) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create local data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// sqlite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&KVEntry{}, &model.PushSubscription{}); err != nil {
		return nil, fmt.Errorf("local automigrate failed: %w", err)
	}

	logrus.WithField("path", cfg.Path).Info("Local database ready")
	return db, nil
}

// InitRemote connects to the hosted Postgres backend and migrates the
// synchronized tables.
func InitRemote(cfg *config.RemoteConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	logrus.Info("Running remote database migrations...")
	if err := db.AutoMigrate(
		&model.Employee{},
		&model.ScheduleEntry{},
		&model.ScheduleNote{},
		&model.AuditLogEntry{},
		&model.PTORequest{},
		&model.Announcement{},
		&model.TimeEntry{},
	); err != nil {
		return nil, fmt.Errorf("remote automigrate failed: %w", err)
	}

	logrus.Info("Remote database initialization complete.")
	return db, nil
}
