package database

import (
	"testing"

	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// openTestDB opens an in-memory sqlite database migrated with every
// falconeri model, mirroring the teacher's TestHelper
// (AMD-AGI-Primus-SaFE Lens core pkg/database/test_helper.go). Facade
// methods that issue SELECT ... FOR UPDATE (ClaimNext, MarkZombie,
// RequeueIfEligible, and anything going through a locked transaction)
// are exercised against Postgres only, since sqlite's grammar rejects
// FOR UPDATE outright.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}
