package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hypercore-one/bridge-monitor/internal/config"
	"github.com/hypercore-one/bridge-monitor/internal/models"
)

// PoolOptions controls the sql.DB connection pool behind gorm.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// APIPool returns pool sizing for the API server process.
func APIPool(cfg *config.DatabaseConfig) PoolOptions {
	return PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	}
}

// WorkerPool returns the smaller pool used by the bridge worker process.
func WorkerPool(cfg *config.DatabaseConfig) PoolOptions {
	return PoolOptions{
		MaxOpenConns:    cfg.WorkerMaxOpenConns,
		MaxIdleConns:    cfg.WorkerMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	}
}

// Connect opens a Postgres connection and configures the pool.
func Connect(dsn string, pool PoolOptions) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Database connection established")
	return gormDB, nil
}

// Migrate runs auto-migration for all models.
func Migrate(gormDB *gorm.DB) error {
	err := gormDB.AutoMigrate(
		&models.User{},
		&models.APIToken{},
		&models.WrapTokenRequest{},
		&models.UnwrapTokenRequest{},
		&models.OrchestratorNode{},
		&models.OrchestratorSnapshot{},
		&models.NetworkStats{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Println("✅ Database migrations complete")
	return nil
}
