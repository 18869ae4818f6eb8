package repository

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/entity"
)

// Open connects to Postgres, tunes the pool, and migrates the schema.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.WrapError(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, common.WrapError(err, "unwrap sql.DB")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := HealthCheck(ctx, db, cfg.DialTimeout, logger); err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&entity.Document{},
		&entity.ExtractJob{},
		&entity.Invoice{},
		&entity.Analysis{},
	); err != nil {
		logger.Error("schema migration failed", "error", err)
		return nil, common.WrapError(err, "auto migrate")
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// HealthCheck pings the underlying connection to catch DSN issues early.
func HealthCheck(ctx context.Context, db *gorm.DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return common.WrapError(err, "unwrap sql.DB")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return common.WrapError(err, "ping database")
	}
	logger.Debug("database ping successful")
	return nil
}

// Close closes the database connection gracefully.
func Close(db *gorm.DB, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("failed to unwrap sql.DB on close", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
		return
	}
	logger.Info("database connection closed")
}
