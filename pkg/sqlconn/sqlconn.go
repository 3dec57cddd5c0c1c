// Package sqlconn opens and tunes the single Postgres connection pool
// falconeri runs against, and serializes schema migrations across
// replicas with a transaction-scoped advisory lock. Grounded on the
// teacher's pkg/sql/conn.go (AMD-AGI-Primus-SaFE Lens core): same
// MaxIdleConn/MaxOpenConn/ConnMaxLifetime/ConnMaxIdleTime tuning,
// generalized from a keyed multi-cluster pool map to the single pool
// falconeri needs, since every falconerid replica talks to one database
// (spec §4.D).
package sqlconn

import (
	"context"
	"fmt"
	"time"

	"github.com/faradayio/falconeri/pkg/config"
	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// migrationLockID is an arbitrary constant used with pg_advisory_xact_lock
// to serialize AutoMigrate across concurrently-starting falconerid
// replicas (spec §4.D: "migrations run under a transaction-scoped
// advisory lock, released automatically, so two replicas starting at
// once don't race on DDL").
const migrationLockID = 784512

// Open builds a *gorm.DB against cfg.Database, tuned the way the
// teacher tunes its pool: idle/open connection caps plus a short
// max-lifetime so a replica never wedges itself to a database node
// that failed over underneath it.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.UserName, cfg.Password, cfg.DBName, sslModeOrDefault(cfg.SSLMode),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB handle: %w", err)
	}

	maxIdle := cfg.MaxIdleConn
	if maxIdle <= 0 {
		maxIdle = 10
	}
	maxOpen := cfg.MaxOpenConn
	if maxOpen <= 0 {
		maxOpen = 40
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	log.Infof("opened database pool: maxIdle=%d maxOpen=%d", maxIdle, maxOpen)
	return db, nil
}

func sslModeOrDefault(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

// Migrate runs AutoMigrate for every falconeri model under a
// transaction-scoped advisory lock, so that two falconerid replicas
// starting at the same time don't both attempt concurrent DDL against
// the same tables. pg_advisory_xact_lock releases automatically at
// transaction end, including on a crash between acquire and commit,
// unlike a session-scoped lock paired with a manual unlock.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockID).Error; err != nil {
			return fmt.Errorf("acquiring migration advisory lock: %w", err)
		}

		log.Info("running schema migration under advisory lock")
		if err := tx.AutoMigrate(model.AllModels()...); err != nil {
			return fmt.Errorf("auto-migrating schema: %w", err)
		}
		return nil
	})
}
