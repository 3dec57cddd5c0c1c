// Babysitter reconciliation tests run against a real Postgres instance
// (see pkg/reservation's test file for why) combined with a fake
// Kubernetes clientset, so set FALCONERI_TEST_DATABASE_URL to run them.
package babysitter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/k8sadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("FALCONERI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FALCONERI_TEST_DATABASE_URL not set, skipping postgres-backed babysitter tests")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func newFakeAdapter() *k8sadapter.Adapter {
	return &k8sadapter.Adapter{Clientset: fake.NewSimpleClientset(), Namespace: "falconeri"}
}

// TestReconcileZombieDatumsMarksPodlessDatumError covers spec §4.G.2: a
// Running datum whose pod no longer exists is marked Error.
func TestReconcileZombieDatumsMarksPodlessDatumError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	k8s := newFakeAdapter()
	b := New(db, k8s, time.Minute, 15*time.Minute)

	job := &model.Job{Status: model.JobRunning, Command: []byte(`["echo"]`)}
	require.NoError(t, database.NewJobFacade(db).Create(ctx, job))
	datum := &model.Datum{JobID: job.ID, Status: model.DatumRunning, PodName: "vanished-pod", MaximumAllowedRunCount: 1}
	require.NoError(t, database.NewDatumFacade(db).CreateBatch(ctx, []*model.Datum{datum}))

	require.NoError(t, b.reconcileZombieDatums(ctx))

	got, err := database.NewDatumFacade(db).Get(ctx, datum.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatumError, got.Status)
}

// TestReconcileZombieDatumsSparesLivePods covers the converse: a
// Running datum whose pod still exists is left untouched.
func TestReconcileZombieDatumsSparesLivePods(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	k8s := newFakeAdapter()
	_, err := k8s.Clientset.CoreV1().Pods("falconeri").Create(ctx, &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "alive-pod", Namespace: "falconeri"},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	}, metav1.CreateOptions{})
	require.NoError(t, err)
	b := New(db, k8s, time.Minute, 15*time.Minute)

	job := &model.Job{Status: model.JobRunning, Command: []byte(`["echo"]`)}
	require.NoError(t, database.NewJobFacade(db).Create(ctx, job))
	datum := &model.Datum{JobID: job.ID, Status: model.DatumRunning, PodName: "alive-pod", MaximumAllowedRunCount: 1}
	require.NoError(t, database.NewDatumFacade(db).CreateBatch(ctx, []*model.Datum{datum}))

	require.NoError(t, b.reconcileZombieDatums(ctx))

	got, err := database.NewDatumFacade(db).Get(ctx, datum.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatumRunning, got.Status)
}

// TestReconcileRetryEligibleDatumsRequeues covers spec §4.G.3: an Error
// datum under its retry cap is requeued to Ready and its stale
// OutputFiles are deleted.
func TestReconcileRetryEligibleDatumsRequeues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	k8s := newFakeAdapter()
	b := New(db, k8s, time.Minute, 15*time.Minute)

	job := &model.Job{Status: model.JobRunning, Command: []byte(`["echo"]`)}
	require.NoError(t, database.NewJobFacade(db).Create(ctx, job))
	datum := &model.Datum{JobID: job.ID, Status: model.DatumError, AttemptedRunCount: 1, MaximumAllowedRunCount: 2}
	require.NoError(t, database.NewDatumFacade(db).CreateBatch(ctx, []*model.Datum{datum}))
	require.NoError(t, database.NewOutputFileFacade(db).CreateBatch(ctx, []*model.OutputFile{
		{JobID: job.ID, DatumID: datum.ID, DestinationURI: "gs://out/stale"},
	}))

	require.NoError(t, b.reconcileRetryEligibleDatums(ctx))

	got, err := database.NewDatumFacade(db).Get(ctx, datum.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DatumReady, got.Status)

	outputs, err := database.NewOutputFileFacade(db).ListByDatum(ctx, datum.ID)
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

// TestReconcileRunningJobsMarksVanishedJob covers spec §4.G.1: a
// Running job older than vanishedJobAfter with no matching Kubernetes
// Job is marked Error.
func TestReconcileRunningJobsMarksVanishedJob(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	k8s := newFakeAdapter()
	b := New(db, k8s, time.Minute, 0) // vanishedJobAfter=0: any age counts as vanished

	job := &model.Job{Status: model.JobRunning, ExternalJobName: "gone", Command: []byte(`["echo"]`)}
	require.NoError(t, database.NewJobFacade(db).Create(ctx, job))
	// A ready datum keeps UpdateStatusIfDone from finishing the job first.
	require.NoError(t, database.NewDatumFacade(db).CreateBatch(ctx, []*model.Datum{
		{JobID: job.ID, Status: model.DatumReady, MaximumAllowedRunCount: 1},
	}))

	require.NoError(t, b.reconcileRunningJobs(ctx))

	got, err := database.NewJobFacade(db).Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobError, got.Status)
}
