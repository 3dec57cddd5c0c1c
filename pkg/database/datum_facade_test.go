package database

import (
	"context"
	"testing"

	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatumFacadeMarkDoneRequiresRunning(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))

	datum := &model.Datum{JobID: job.ID, Status: model.DatumRunning, MaximumAllowedRunCount: 2}
	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{datum}))

	require.NoError(t, datums.MarkDone(ctx, datum.ID, "process output"))

	got, err := datums.Get(ctx, datum.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatumDone, got.Status)
	assert.Equal(t, "process output", got.ProcessStatus)

	// Not running anymore: MarkDone again is a no-op error.
	err = datums.MarkDone(ctx, datum.ID, "process output")
	assert.Equal(t, ErrNotFound, err)
}

func TestDatumFacadeMarkErrorRecordsDiagnostics(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))
	datum := &model.Datum{JobID: job.ID, Status: model.DatumRunning, MaximumAllowedRunCount: 2}
	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{datum}))

	require.NoError(t, datums.MarkError(ctx, datum.ID, "out", "boom", "stack"))

	got, err := datums.Get(ctx, datum.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatumError, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, "stack", got.Backtrace)
}

func TestDatumFacadeCountByStatusAndRerunable(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))

	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{
		{JobID: job.ID, Status: model.DatumReady, MaximumAllowedRunCount: 1},
		{JobID: job.ID, Status: model.DatumDone, MaximumAllowedRunCount: 1},
		{JobID: job.ID, Status: model.DatumError, MaximumAllowedRunCount: 2, AttemptedRunCount: 1},
		{JobID: job.ID, Status: model.DatumError, MaximumAllowedRunCount: 1, AttemptedRunCount: 1},
	}))

	counts, err := datums.CountByStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[model.DatumReady])
	assert.EqualValues(t, 1, counts[model.DatumDone])
	assert.EqualValues(t, 2, counts[model.DatumError])

	rerunable, err := datums.CountRerunable(ctx, job.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rerunable)
}

func TestDatumFacadeListErrorByJob(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{
		{JobID: job.ID, Status: model.DatumReady, MaximumAllowedRunCount: 1},
		{JobID: job.ID, Status: model.DatumError, MaximumAllowedRunCount: 1},
	}))

	errDatums, err := datums.ListErrorByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, errDatums, 1)
	assert.Equal(t, model.DatumError, errDatums[0].Status)
}

func TestDatumFacadeRunningByJobStatusJoinsSingularTables(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	ctx := context.Background()

	runningJob := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, runningJob))
	doneJob := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, doneJob))
	require.NoError(t, jobs.MarkDone(ctx, doneJob.ID))

	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{
		{JobID: runningJob.ID, Status: model.DatumRunning, MaximumAllowedRunCount: 1},
		{JobID: doneJob.ID, Status: model.DatumRunning, MaximumAllowedRunCount: 1},
	}))

	running, err := datums.RunningByJobStatus(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, runningJob.ID, running[0].JobID)
}

func TestDatumFacadeRetryEligibleByJob(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))

	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{
		{JobID: job.ID, Status: model.DatumError, MaximumAllowedRunCount: 2, AttemptedRunCount: 1},
		{JobID: job.ID, Status: model.DatumError, MaximumAllowedRunCount: 1, AttemptedRunCount: 1},
	}))

	eligible, err := datums.RetryEligibleByJob(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, 2, eligible[0].MaximumAllowedRunCount)
}
