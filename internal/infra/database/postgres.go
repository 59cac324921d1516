package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rolfenpp/ChronoBit-API/internal/infra/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), NewGormConfig())
}

// NewGormConfig is shared by the live connection and by tests running over sqlmock.
func NewGormConfig() *gorm.Config {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             300 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,                   // Enable color
		},
	)

	return &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	}
}

func MigratePostgres(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.TimeClaim{},
		&models.Identity{},
	)
}
