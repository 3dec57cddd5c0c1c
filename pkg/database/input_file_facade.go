package database

import (
	"context"

	"github.com/faradayio/falconeri/pkg/database/model"
	"gorm.io/gorm"
)

// InputFileFacade is the data-access surface for model.InputFile.
type InputFileFacade struct {
	BaseFacade
}

// NewInputFileFacade builds an InputFileFacade bound to db.
func NewInputFileFacade(db *gorm.DB) *InputFileFacade {
	return &InputFileFacade{BaseFacade{db: db}}
}

// CreateBatch inserts the InputFiles the Planner produced for a Datum.
func (f *InputFileFacade) CreateBatch(ctx context.Context, files []*model.InputFile) error {
	if len(files) == 0 {
		return nil
	}
	return f.getDB().WithContext(ctx).Create(&files).Error
}

// ListByDatum returns every InputFile belonging to datumID, in the
// order the worker must sync them down (spec §4.H).
func (f *InputFileFacade) ListByDatum(ctx context.Context, datumID string) ([]*model.InputFile, error) {
	var files []*model.InputFile
	err := f.getDB().WithContext(ctx).Where("datum_id = ?", datumID).Order("created_at ASC").Find(&files).Error
	return files, err
}
