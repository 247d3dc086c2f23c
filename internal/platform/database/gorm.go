// File: internal/platform/database/gorm.go
package database

import (
	"fmt"
	"time"

	"artify/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ProfileDB is the database holding profiles and invitations.
type ProfileDB struct{ *gorm.DB }

// SessionDB is the local database the session store persists into.
type SessionDB struct{ *gorm.DB }

// NewGORM opens the profile database using DB_DRIVER.
func NewGORM(cfg *config.Config, logger *zap.Logger) (*ProfileDB, error) {
	if cfg.DBDriver == "sqlite" {
		db, err := OpenSQLite(cfg.DBSQLitePath, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Successfully connected to the profile database.", zap.String("driver", cfg.DBDriver))
		return &ProfileDB{DB: db}, nil
	}

	db, err := open(postgres.Open(cfg.PostgresDSN()), cfg, logger)
	if err != nil {
		return nil, err
	}

	// Connection Pool Settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the profile database.", zap.String("driver", cfg.DBDriver))
	return &ProfileDB{DB: db}, nil
}

// NewSessionGORM opens the sqlite file the session store persists into.
func NewSessionGORM(cfg *config.Config, logger *zap.Logger) (*SessionDB, error) {
	db, err := OpenSQLite(cfg.SessionDBPath, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &SessionDB{DB: db}, nil
}

// OpenSQLite opens a sqlite database at path. Use ":memory:" in tests.
func OpenSQLite(path string, cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := open(sqlite.Open(path), cfg, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// sqlite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func open(dialector gorm.Dialector, cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	var gormLogLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case "silent", "fatal", "panic":
		gormLogLevel = gormlogger.Silent
	case "error":
		gormLogLevel = gormlogger.Error
	case "debug":
		gormLogLevel = gormlogger.Info
	default:
		gormLogLevel = gormlogger.Warn
	}

	writer := &zapio.Writer{Log: logger.Named("gorm"), Level: zap.DebugLevel}
	newLogger := gormlogger.New(
		gormWriter{w: writer},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// gormWriter adapts a zapio.Writer to gorm's Printf-style writer.
type gormWriter struct{ w *zapio.Writer }

func (g gormWriter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(g.w, format+"\n", args...)
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB, logger *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Error getting underlying SQL DB for closing", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
		return
	}
	logger.Info("Database connection closed.")
}
