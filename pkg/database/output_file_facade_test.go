package database

import (
	"context"
	"testing"

	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFileFacadeCreateBatchDefaultsStatusRunning(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	outputs := NewOutputFileFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))
	datum := &model.Datum{JobID: job.ID, Status: model.DatumRunning, MaximumAllowedRunCount: 1}
	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{datum}))

	require.NoError(t, outputs.CreateBatch(ctx, []*model.OutputFile{
		{JobID: job.ID, DatumID: datum.ID, DestinationURI: "gs://out/a"},
	}))

	listed, err := outputs.ListByDatum(ctx, datum.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, model.OutputFileRunning, listed[0].Status)
}

func TestOutputFileFacadePatchStatuses(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	outputs := NewOutputFileFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))
	datum := &model.Datum{JobID: job.ID, Status: model.DatumRunning, MaximumAllowedRunCount: 1}
	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{datum}))

	a := &model.OutputFile{JobID: job.ID, DatumID: datum.ID, DestinationURI: "gs://out/a"}
	b := &model.OutputFile{JobID: job.ID, DatumID: datum.ID, DestinationURI: "gs://out/b"}
	require.NoError(t, outputs.CreateBatch(ctx, []*model.OutputFile{a, b}))

	require.NoError(t, outputs.PatchStatuses(ctx, []StatusPatch{
		{ID: a.ID, Status: model.OutputFileDone},
		{ID: b.ID, Status: model.OutputFileError},
	}))

	listed, err := outputs.ListByDatum(ctx, datum.ID)
	require.NoError(t, err)
	byID := map[string]model.OutputFileStatus{}
	for _, f := range listed {
		byID[f.ID] = f.Status
	}
	assert.Equal(t, model.OutputFileDone, byID[a.ID])
	assert.Equal(t, model.OutputFileError, byID[b.ID])
}

func TestOutputFileFacadeDeleteByDatum(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobFacade(db)
	datums := NewDatumFacade(db)
	outputs := NewOutputFileFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, jobs.Create(ctx, job))
	datum := &model.Datum{JobID: job.ID, Status: model.DatumRunning, MaximumAllowedRunCount: 1}
	require.NoError(t, datums.CreateBatch(ctx, []*model.Datum{datum}))
	require.NoError(t, outputs.CreateBatch(ctx, []*model.OutputFile{
		{JobID: job.ID, DatumID: datum.ID, DestinationURI: "gs://out/a"},
	}))

	require.NoError(t, outputs.DeleteByDatum(ctx, datum.ID))

	listed, err := outputs.ListByDatum(ctx, datum.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
