package database

import (
	"context"
	"time"

	"github.com/faradayio/falconeri/pkg/database/model"
	"gorm.io/gorm"
)

// JobFacade is the data-access surface for model.Job, grounded on the
// teacher's AITaskFacade method shapes (Create/Get/List/Updates-with-
// RowsAffected-check).
type JobFacade struct {
	BaseFacade
}

// NewJobFacade builds a JobFacade bound to db.
func NewJobFacade(db *gorm.DB) *JobFacade {
	return &JobFacade{BaseFacade{db: db}}
}

// Create inserts a new Job, defaulting Status to JobRunning.
func (f *JobFacade) Create(ctx context.Context, job *model.Job) error {
	if job.Status == "" {
		job.Status = model.JobRunning
	}
	return f.getDB().WithContext(ctx).Create(job).Error
}

// Get fetches a Job by id.
func (f *JobFacade) Get(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := f.getDB().WithContext(ctx).Where("id = ?", id).First(&job).Error
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns every Job, most recently created first, supplementing
// the distilled spec's single-job-by-id API with the list endpoint
// described in the falconeri CLI's "job list" command.
func (f *JobFacade) List(ctx context.Context) ([]*model.Job, error) {
	var jobs []*model.Job
	err := f.getDB().WithContext(ctx).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// MarkDone transitions a Job to JobDone if it is still Running.
func (f *JobFacade) MarkDone(ctx context.Context, id string) error {
	result := f.getDB().WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobRunning).
		Updates(map[string]interface{}{
			"status":     model.JobDone,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkError transitions a Job to JobError if it is still Running,
// recording the triggering Datum's error for "job describe" to surface.
func (f *JobFacade) MarkError(ctx context.Context, id, errMsg, errDetails string) error {
	result := f.getDB().WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobRunning).
		Updates(map[string]interface{}{
			"status":        model.JobError,
			"error":         errMsg,
			"error_details": errDetails,
			"updated_at":    time.Now(),
		})
	return result.Error
}
