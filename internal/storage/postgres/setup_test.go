package postgres

import (
	"testing"

	"github.com/skillforge/pipeline/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // Disable logs during tests
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps every goroutine on the same in-memory
	// database and sidesteps sqlite's write lock contention.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Job{},
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Certificate{},
	)
	require.NoError(t, err)

	return db
}
