package storage

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"duochat/internal/config"
	"duochat/internal/models"
)

// InitDB initializes the database connection using the provided configuration.
// SQL logging goes through log at debug level.
func InitDB(cfg config.DatabaseConfig, log *slog.Logger, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dsnParts := []string{
			fmt.Sprintf("host=%s", cfg.Host),
			fmt.Sprintf("port=%d", cfg.Port),
			fmt.Sprintf("user=%s", cfg.User),
			fmt.Sprintf("dbname=%s", cfg.DBName),
		}
		if cfg.Password != "" {
			dsnParts = append(dsnParts, fmt.Sprintf("password=%s", cfg.Password))
		}
		dsnParts = append(dsnParts, fmt.Sprintf("sslmode=%s", cfg.SSLMode))
		dialector = postgres.Open(strings.Join(dsnParts, " "))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(log, logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connected", "host", cfg.Host, "db", cfg.DBName)
	return db, nil
}

// NewGormLogger adapts slog to gorm's logger. SQL traces only show at debug.
func NewGormLogger(log *slog.Logger, level string) logger.Interface {
	gormLevel := logger.Warn
	switch strings.ToLower(level) {
	case "debug":
		gormLevel = logger.Info
	case "error":
		gormLevel = logger.Error
	}
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelDebug),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// AutoMigrateTables runs GORM's auto-migration feature for all defined models.
func AutoMigrateTables(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Message{}); err != nil {
		return fmt.Errorf("auto-migrate tables: %w", err)
	}
	return nil
}
