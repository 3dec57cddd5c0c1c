package database

import (
	"context"
	"testing"

	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobFacadeCreateDefaultsStatusRunning(t *testing.T) {
	db := openTestDB(t)
	facade := NewJobFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, facade.Create(ctx, job))
	assert.Equal(t, model.JobRunning, job.Status)
	assert.NotEmpty(t, job.ID)
}

func TestJobFacadeGetNotFound(t *testing.T) {
	db := openTestDB(t)
	facade := NewJobFacade(db)
	_, err := facade.Get(context.Background(), "missing")
	assert.Equal(t, ErrNotFound, err)
}

func TestJobFacadeListOrdersByCreatedAtDesc(t *testing.T) {
	db := openTestDB(t)
	facade := NewJobFacade(db)
	ctx := context.Background()

	first := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, facade.Create(ctx, first))
	second := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, facade.Create(ctx, second))

	jobs, err := facade.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
}

func TestJobFacadeMarkDoneRequiresRunning(t *testing.T) {
	db := openTestDB(t)
	facade := NewJobFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, facade.Create(ctx, job))
	require.NoError(t, facade.MarkDone(ctx, job.ID))

	got, err := facade.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobDone, got.Status)

	// Already done: MarkDone again hits zero rows affected.
	err = facade.MarkDone(ctx, job.ID)
	assert.Equal(t, ErrNotFound, err)
}

func TestJobFacadeMarkErrorRecordsDiagnostics(t *testing.T) {
	db := openTestDB(t)
	facade := NewJobFacade(db)
	ctx := context.Background()

	job := &model.Job{Command: []byte(`["echo"]`)}
	require.NoError(t, facade.Create(ctx, job))
	require.NoError(t, facade.MarkError(ctx, job.ID, "boom", "stack trace"))

	got, err := facade.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, "stack trace", got.ErrorDetails)
}
