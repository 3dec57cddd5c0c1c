package database

import (
	"context"
	"time"

	"github.com/faradayio/falconeri/pkg/database/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatumFacade is the data-access surface for model.Datum. ClaimNext is
// grounded directly on the teacher's AITaskFacade.ClaimTask (AMD-AGI-
// Primus-SaFE Lens core pkg/database/ai_task_facade.go): a transaction
// that locks one eligible row with SELECT ... FOR UPDATE SKIP LOCKED,
// flips it to Running, and returns it — the mechanism spec §4.E
// invariant I-RESV-1 ("at most one worker ever holds a given Datum at
// a time") depends on.
type DatumFacade struct {
	BaseFacade
}

// NewDatumFacade builds a DatumFacade bound to db.
func NewDatumFacade(db *gorm.DB) *DatumFacade {
	return &DatumFacade{BaseFacade{db: db}}
}

// CreateBatch inserts the Datums the Planner produced for a Job.
func (f *DatumFacade) CreateBatch(ctx context.Context, datums []*model.Datum) error {
	if len(datums) == 0 {
		return nil
	}
	return f.getDB().WithContext(ctx).Create(&datums).Error
}

// ClaimNext implements reserve_next_datum (spec §4.E.1). It first tries
// idempotent recovery: if jobID/podName already owns a Running datum,
// that datum is returned unchanged (handles a lost HTTP response).
// Otherwise it atomically selects and claims the oldest Ready datum
// with SELECT ... FOR UPDATE SKIP LOCKED. Returns (nil, nil) when no
// datum is available.
func (f *DatumFacade) ClaimNext(ctx context.Context, jobID, nodeName, podName string) (*model.Datum, error) {
	var recovered model.Datum
	err := f.getDB().WithContext(ctx).
		Where("job_id = ? AND pod_name = ? AND status = ?", jobID, podName, model.DatumRunning).
		First(&recovered).Error
	if err == nil {
		return &recovered, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	var claimed *model.Datum
	err = f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var datum model.Datum
		e := tx.Clauses(clause.Locking{
			Strength: "UPDATE",
			Options:  "SKIP LOCKED",
		}).Where("job_id = ? AND status = ?", jobID, model.DatumReady).
			Order("created_at ASC").
			Limit(1).
			First(&datum).Error
		if e != nil {
			return e
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":              model.DatumRunning,
			"node_name":           nodeName,
			"pod_name":            podName,
			"reserved_at":         now,
			"attempted_run_count": gorm.Expr("attempted_run_count + 1"),
		}
		if e := tx.Model(&model.Datum{}).Where("id = ?", datum.ID).Updates(updates).Error; e != nil {
			return e
		}
		if e := tx.Where("id = ?", datum.ID).First(&datum).Error; e != nil {
			return e
		}
		claimed = &datum
		return nil
	})

	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Get fetches a Datum by id.
func (f *DatumFacade) Get(ctx context.Context, id string) (*model.Datum, error) {
	var datum model.Datum
	err := f.getDB().WithContext(ctx).Where("id = ?", id).First(&datum).Error
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &datum, nil
}

// MarkDone implements mark_datum_as_done (spec §4.E.2): requires
// current status Running, records captured output, sets status Done.
func (f *DatumFacade) MarkDone(ctx context.Context, id, processStatus string) error {
	result := f.getDB().WithContext(ctx).Model(&model.Datum{}).
		Where("id = ? AND status = ?", id, model.DatumRunning).
		Updates(map[string]interface{}{
			"status":         model.DatumDone,
			"process_status": processStatus,
			"finished_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkError implements mark_datum_as_error (spec §4.E.3): requires
// current status Running, persists diagnostics, sets status Error.
// Retry eligibility is decided later by the Babysitter, not here.
func (f *DatumFacade) MarkError(ctx context.Context, id, processStatus, errMsg, backtrace string) error {
	result := f.getDB().WithContext(ctx).Model(&model.Datum{}).
		Where("id = ? AND status = ?", id, model.DatumRunning).
		Updates(map[string]interface{}{
			"status":         model.DatumError,
			"process_status": processStatus,
			"error":          errMsg,
			"backtrace":      backtrace,
			"finished_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns how many Datums of jobID are in each state,
// used by update_status_if_done (spec §4.E.4).
func (f *DatumFacade) CountByStatus(ctx context.Context, jobID string) (map[model.DatumStatus]int64, error) {
	type row struct {
		Status model.DatumStatus
		Count  int64
	}
	var rows []row
	err := f.getDB().WithContext(ctx).Model(&model.Datum{}).
		Select("status, count(*) as count").
		Where("job_id = ?", jobID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.DatumStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// CountRerunable returns the number of jobID's datums that are Error
// with attempts still remaining, the "rerunable" count of update_status_if_done.
func (f *DatumFacade) CountRerunable(ctx context.Context, jobID string) (int64, error) {
	var count int64
	err := f.getDB().WithContext(ctx).Model(&model.Datum{}).
		Where("job_id = ? AND status = ? AND attempted_run_count < maximum_allowed_run_count", jobID, model.DatumError).
		Count(&count).Error
	return count, err
}

// ListByJob returns every Datum belonging to jobID.
func (f *DatumFacade) ListByJob(ctx context.Context, jobID string) ([]*model.Datum, error) {
	var datums []*model.Datum
	err := f.getDB().WithContext(ctx).Where("job_id = ?", jobID).Order("created_at ASC").Find(&datums).Error
	return datums, err
}

// ListErrorByJob returns jobID's Error datums, used by RetryJob to
// clone them into a new Job (spec §4.E.7).
func (f *DatumFacade) ListErrorByJob(ctx context.Context, jobID string) ([]*model.Datum, error) {
	var datums []*model.Datum
	err := f.getDB().WithContext(ctx).
		Where("job_id = ? AND status = ?", jobID, model.DatumError).
		Order("created_at ASC").Find(&datums).Error
	return datums, err
}

// RunningByJobStatus returns every Running Datum whose owning Job is
// Running, the Babysitter's zombie-datum candidate set (spec §4.G.2).
func (f *DatumFacade) RunningByJobStatus(ctx context.Context) ([]*model.Datum, error) {
	var datums []*model.Datum
	err := f.getDB().WithContext(ctx).
		Joins("JOIN job ON job.id = datum.job_id").
		Where("datum.status = ? AND job.status = ?", model.DatumRunning, model.JobRunning).
		Find(&datums).Error
	return datums, err
}

// MarkZombie locks a single datum, re-verifies it is still Running, and
// marks it Error with a synthetic message, for the Babysitter's zombie
// check (spec §4.G.2). Returns false (no error) if the datum had
// already transitioned away from Running by the time it was locked.
func (f *DatumFacade) MarkZombie(ctx context.Context, id string) (marked bool, err error) {
	err = f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var datum model.Datum
		e := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&datum).Error
		if e != nil {
			return e
		}
		if datum.Status != model.DatumRunning {
			return nil
		}
		marked = true
		return tx.Model(&model.Datum{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":      model.DatumError,
			"error":       "worker pod disappeared while working on datum",
			"finished_at": time.Now(),
		}).Error
	})
	return marked, err
}

// RetryEligibleByJob returns the datums, across all jobs, whose owning
// job is Running, whose status is Error, and whose attempts remain, the Babysitter's
// retry-eligible candidate set (spec §4.G.3).
func (f *DatumFacade) RetryEligibleByJob(ctx context.Context) ([]*model.Datum, error) {
	var datums []*model.Datum
	err := f.getDB().WithContext(ctx).
		Joins("JOIN job ON job.id = datum.job_id").
		Where("datum.status = ? AND job.status = ? AND datum.attempted_run_count < datum.maximum_allowed_run_count",
			model.DatumError, model.JobRunning).
		Find(&datums).Error
	return datums, err
}

// RequeueIfEligible locks a single datum, re-checks eligibility (still
// Error, still under the retry cap), and sets it back to Ready without
// incrementing attempted_run_count — incrementing is deferred to the
// next reservation (spec §4.G.3). Returns false if the datum was no
// longer eligible by the time it was locked.
func (f *DatumFacade) RequeueIfEligible(ctx context.Context, id string) (requeued bool, err error) {
	err = f.getDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var datum model.Datum
		e := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&datum).Error
		if e != nil {
			return e
		}
		if datum.Status != model.DatumError || !datum.CanRetry() {
			return nil
		}
		requeued = true
		return tx.Model(&model.Datum{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":      model.DatumReady,
			"node_name":   "",
			"pod_name":    "",
			"reserved_at": nil,
		}).Error
	})
	return requeued, err
}
