// Package database implements spec §4.D's data-access layer: one
// facade per entity over a single GORM handle. Grounded on the
// teacher's BaseFacade + AITaskFacade (AMD-AGI-Primus-SaFE Lens core
// pkg/database/base_facade.go, ai_task_facade.go), simplified from a
// multi-cluster ClusterManager lookup to a single injected *gorm.DB
// since falconerid talks to exactly one Postgres instance.
package database

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned by facade Get methods when no row matches.
var ErrNotFound = errors.New("database: record not found")

// BaseFacade carries the shared *gorm.DB every entity facade embeds.
type BaseFacade struct {
	db *gorm.DB
}

func (f *BaseFacade) getDB() *gorm.DB {
	return f.db
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
