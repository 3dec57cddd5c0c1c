package database

import (
	"context"

	"github.com/faradayio/falconeri/pkg/database/model"
	"gorm.io/gorm"
)

// OutputFileFacade is the data-access surface for model.OutputFile.
type OutputFileFacade struct {
	BaseFacade
}

// NewOutputFileFacade builds an OutputFileFacade bound to db.
func NewOutputFileFacade(db *gorm.DB) *OutputFileFacade {
	return &OutputFileFacade{BaseFacade{db: db}}
}

// CreateBatch records the OutputFiles a worker is about to sync up for a
// Datum (the worker creates them before the upload starts).
// Not idempotent: a second call for the same Datum inserts duplicate
// rows rather than upserting, since a worker only ever calls this once
// per successful Datum and a duplicate call indicates a retry the
// caller should have routed through RetryJob instead (see DESIGN.md's
// Open Question decision for non-idempotent OutputFile creation).
func (f *OutputFileFacade) CreateBatch(ctx context.Context, files []*model.OutputFile) error {
	if len(files) == 0 {
		return nil
	}
	for _, file := range files {
		if file.Status == "" {
			file.Status = model.OutputFileRunning
		}
	}
	return f.getDB().WithContext(ctx).Create(&files).Error
}

// ListByDatum returns every OutputFile belonging to datumID.
func (f *OutputFileFacade) ListByDatum(ctx context.Context, datumID string) ([]*model.OutputFile, error) {
	var files []*model.OutputFile
	err := f.getDB().WithContext(ctx).Where("datum_id = ?", datumID).Find(&files).Error
	return files, err
}

// StatusPatch is one {id, status} pair of the PatchOutputFiles request.
type StatusPatch struct {
	ID     string
	Status model.OutputFileStatus
}

// PatchStatuses applies a batch of {id, status} patches in a single
// transaction, partitioned by target status, the PatchOutputFiles
// operation of spec §4.E.
func (f *OutputFileFacade) PatchStatuses(ctx context.Context, patches []StatusPatch) error {
	if len(patches) == 0 {
		return nil
	}
	byStatus := map[model.OutputFileStatus][]string{}
	for _, p := range patches {
		byStatus[p.Status] = append(byStatus[p.Status], p.ID)
	}
	return f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for status, ids := range byStatus {
			if err := tx.Model(&model.OutputFile{}).
				Where("id IN ?", ids).
				Update("status", status).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteByDatum removes every OutputFile for datumID, used when the
// Babysitter requeues an error datum back to ready so a fresh attempt
// starts with zero OutputFiles (spec §4.G.3, §8 OutputFile cleanup on retry).
func (f *OutputFileFacade) DeleteByDatum(ctx context.Context, datumID string) error {
	return f.getDB().WithContext(ctx).Where("datum_id = ?", datumID).Delete(&model.OutputFile{}).Error
}
