package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

// Connect opens the postgres pool and verifies it responds.
func Connect(dsn string, log *logger.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("database connected")
	return gdb, nil
}

// Migrate applies the schema. Order respects foreign keys.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.Tenant{},
		&types.APIKey{},
		&types.Course{},
		&types.CourseModule{},
		&types.Lesson{},
		&types.Concept{},
		&types.Exercise{},
		&types.MaterialFile{},
		&types.SlideMapping{},
		&types.StructureRun{},
		&types.LLMCall{},
	)
}

// Ping is the health-probe hook.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
