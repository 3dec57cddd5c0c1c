// Package launcher implements the Job Launcher of spec §4.H: given a
// pipeline spec, plan its datums, persist Job/Datum/InputFile rows in
// one transaction, then render and submit the Kubernetes workload
// outside that transaction. Grounded on the teacher's job-creation flow
// (AMD-AGI-Primus-SaFE Lens jobs dataplane_installer.createInstallerJob):
// database state is written first, the cluster call happens after and
// its failure doesn't roll back the rows already committed.
package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/k8sadapter"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/faradayio/falconeri/pkg/manifest"
	"github.com/faradayio/falconeri/pkg/planner"
	"github.com/faradayio/falconeri/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultMaxRunCount = 3

const nameSuffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Launcher ties the Planner, the database and the Kubernetes Adapter
// together to create new Jobs (spec §4.H).
type Launcher struct {
	db        *gorm.DB
	storage   *storage.Factory
	k8s       *k8sadapter.Adapter
	inputRoot string
}

// New builds a Launcher.
func New(db *gorm.DB, storageFactory *storage.Factory, k8s *k8sadapter.Adapter, inputRoot string) *Launcher {
	return &Launcher{db: db, storage: storageFactory, k8s: k8s, inputRoot: inputRoot}
}

// Launch creates a new Job from raw, a pipeline spec document (spec §6).
func (l *Launcher) Launch(ctx context.Context, raw []byte) (*model.Job, error) {
	spec, err := ParsePipelineSpec(raw)
	if err != nil {
		return nil, err
	}

	input, err := spec.Input.toInput()
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	externalName := externalJobName(spec.Pipeline.Name)

	plan, err := planner.Plan(ctx, l.storage, jobID, input, l.inputRoot, defaultMaxRunCount)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:              jobID,
		Status:          model.JobRunning,
		ExternalJobName: externalName,
		PipelineSpec:    raw,
		Command:         mustMarshal(spec.Transform.Cmd),
		EgressURI:       spec.Egress.URI,
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		jobs := database.NewJobFacade(tx)
		datums := database.NewDatumFacade(tx)
		inputFiles := database.NewInputFileFacade(tx)

		if err := jobs.Create(ctx, job); err != nil {
			return err
		}
		if err := datums.CreateBatch(ctx, plan.NewDatum); err != nil {
			return err
		}
		if err := inputFiles.CreateBatch(ctx, plan.NewInputFile); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persisting job %s: %w", jobID, err)
	}

	// Submitting the workload happens outside the transaction: failure
	// here does not roll back the rows already committed. The
	// Babysitter's vanished-job rule eventually marks the Job error if
	// the workload never appears (spec §4.H).
	if err := l.submitWorkload(ctx, job, spec); err != nil {
		log.Errorf("submitting kubernetes workload for job %s: %v", jobID, err)
	}

	return job, nil
}

func (l *Launcher) submitWorkload(ctx context.Context, job *model.Job, spec *PipelineSpec) error {
	renderSpec := manifest.Spec{
		JobID:           job.ID,
		ExternalName:    job.ExternalJobName,
		Image:           spec.Transform.Image,
		ImagePullPolicy: corev1.PullPolicy(spec.Transform.ImagePullPolicy),
		Env:             spec.Transform.Env,
		Secrets:         spec.SecretDescriptors(),
		ServiceAccount:  spec.Transform.ServiceAccount,
		Parallelism:     int32(spec.ParallelismSpec.Constant),
		MemoryRequest:   spec.ResourceRequests.Memory,
		CPURequest:      fmt.Sprintf("%g", spec.ResourceRequests.CPU),
		NodeSelector:    spec.NodeSelector,
	}
	k8sJob, err := manifest.Render(renderSpec)
	if err != nil {
		return fmt.Errorf("rendering manifest: %w", err)
	}
	return l.k8s.Apply(ctx, k8sJob)
}

// externalJobName derives "<pipeline-name>-<5-char-random>", lowercased
// with underscores folded to hyphens, per spec §4.H.
func externalJobName(pipelineName string) string {
	base := strings.ToLower(strings.ReplaceAll(pipelineName, "_", "-"))
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = nameSuffixChars[rand.Intn(len(nameSuffixChars))]
	}
	return fmt.Sprintf("%s-%s", base, string(suffix))
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Cmd is always a []string decoded from valid JSON; this only
		// fails if that invariant is broken upstream.
		panic(fmt.Sprintf("marshaling command: %v", err))
	}
	return b
}
