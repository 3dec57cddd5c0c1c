// Package reservation implements the Reservation Protocol of spec
// §4.E, the heart of the system: reserve_next_datum, mark_datum_as_done,
// mark_datum_as_error, update_status_if_done, create_output_files,
// patch_output_files and retry_job. Grounded on the teacher's
// transaction-with-row-lock idiom (AMD-AGI-Primus-SaFE Lens core
// pkg/database/ai_task_facade.go ClaimTask), generalized from a single
// claim query into the full state machine the spec describes.
package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/ferrors"
	"github.com/faradayio/falconeri/pkg/k8sadapter"
	"github.com/faradayio/falconeri/pkg/launcher"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/faradayio/falconeri/pkg/manifest"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service exposes the Reservation Protocol over a single database pool.
type Service struct {
	db  *gorm.DB
	k8s *k8sadapter.Adapter
}

// New builds a Service bound to db and the cluster adapter RetryJob
// submits the retried workload through.
func New(db *gorm.DB, k8s *k8sadapter.Adapter) *Service {
	return &Service{db: db, k8s: k8s}
}

// ReserveNextDatum implements reserve_next_datum (spec §4.E.1).
// Returns (nil, nil, nil) when no Datum is available.
func (s *Service) ReserveNextDatum(ctx context.Context, jobID, nodeName, podName string) (*model.Datum, []*model.InputFile, error) {
	datums := database.NewDatumFacade(s.db)
	inputFiles := database.NewInputFileFacade(s.db)

	datum, err := datums.ClaimNext(ctx, jobID, nodeName, podName)
	if err != nil {
		return nil, nil, ferrors.Transport(fmt.Errorf("reserving next datum: %w", err))
	}
	if datum == nil {
		return nil, nil, nil
	}
	if datum.AttemptedRunCount > 1 {
		log.WithFields(log.Fields{"datum_id": datum.ID, "pod_name": podName}).
			Info("pod re-requested its existing reservation")
	}

	files, err := inputFiles.ListByDatum(ctx, datum.ID)
	if err != nil {
		return nil, nil, ferrors.Transport(fmt.Errorf("loading input files: %w", err))
	}
	return datum, files, nil
}

// GetDatum fetches a Datum by id. No code in this repository calls it;
// MarkDatumAsDone and MarkDatumAsError return the post-patch row themselves.
func (s *Service) GetDatum(ctx context.Context, id string) (*model.Datum, error) {
	return database.NewDatumFacade(s.db).Get(ctx, id)
}

// MarkDatumAsDone implements mark_datum_as_done (spec §4.E.2).
func (s *Service) MarkDatumAsDone(ctx context.Context, datumID, capturedOutput string) (*model.Datum, error) {
	datums := database.NewDatumFacade(s.db)
	datum, err := datums.Get(ctx, datumID)
	if err != nil {
		return nil, err
	}
	if err := datums.MarkDone(ctx, datumID, capturedOutput); err != nil {
		if err == database.ErrNotFound {
			return nil, ferrors.StateMachine("datum is not running")
		}
		return nil, ferrors.Transport(fmt.Errorf("marking datum done: %w", err))
	}
	if err := s.UpdateStatusIfDone(ctx, datum.JobID); err != nil {
		return nil, err
	}
	return datums.Get(ctx, datumID)
}

// MarkDatumAsError implements mark_datum_as_error (spec §4.E.3).
func (s *Service) MarkDatumAsError(ctx context.Context, datumID, capturedOutput, errMsg, backtrace string) (*model.Datum, error) {
	datums := database.NewDatumFacade(s.db)
	datum, err := datums.Get(ctx, datumID)
	if err != nil {
		return nil, err
	}
	if err := datums.MarkError(ctx, datumID, capturedOutput, errMsg, backtrace); err != nil {
		if err == database.ErrNotFound {
			return nil, ferrors.StateMachine("datum is not running")
		}
		return nil, ferrors.Transport(fmt.Errorf("marking datum error: %w", err))
	}
	if err := s.UpdateStatusIfDone(ctx, datum.JobID); err != nil {
		return nil, err
	}
	return datums.Get(ctx, datumID)
}

// UpdateStatusIfDone implements update_status_if_done (spec §4.E.4): a
// single transaction that locks the Job row, computes per-status
// Datum counts, and decides whether the Job has reached a terminal
// state.
func (s *Service) UpdateStatusIfDone(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", jobID).First(&job).Error
		if err == gorm.ErrRecordNotFound {
			return database.ErrNotFound
		}
		if err != nil {
			return err
		}
		if job.Status != model.JobRunning {
			return nil
		}

		datums := database.NewDatumFacade(tx)
		counts, err := datums.CountByStatus(ctx, jobID)
		if err != nil {
			return err
		}
		rerunable, err := datums.CountRerunable(ctx, jobID)
		if err != nil {
			return err
		}

		unfinished := counts[model.DatumReady] + counts[model.DatumRunning]
		failed := counts[model.DatumError] - rerunable

		switch {
		case unfinished > 0 || rerunable > 0:
			return nil
		case failed > 0:
			return tx.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
				"status":     model.JobError,
				"updated_at": time.Now(),
			}).Error
		default:
			return tx.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
				"status":     model.JobDone,
				"updated_at": time.Now(),
			}).Error
		}
	})
}

// CreateOutputFiles implements create_output_files (spec §4.E.5): bulk
// insert with status running. Not idempotent (see DESIGN.md).
func (s *Service) CreateOutputFiles(ctx context.Context, files []*model.OutputFile) ([]*model.OutputFile, error) {
	facade := database.NewOutputFileFacade(s.db)
	if err := facade.CreateBatch(ctx, files); err != nil {
		return nil, ferrors.Transport(fmt.Errorf("creating output files: %w", err))
	}
	return files, nil
}

// PatchOutputFiles implements patch_output_files (spec §4.E.6).
func (s *Service) PatchOutputFiles(ctx context.Context, patches []database.StatusPatch) error {
	for _, p := range patches {
		if p.Status != model.OutputFileDone && p.Status != model.OutputFileError {
			return ferrors.Validation("output file status must be done or error, got %q", p.Status)
		}
	}
	facade := database.NewOutputFileFacade(s.db)
	if err := facade.PatchStatuses(ctx, patches); err != nil {
		return ferrors.Transport(fmt.Errorf("patching output files: %w", err))
	}
	return nil
}

// RetryJob implements retry_job (spec §4.E.7): only allowed on an Error
// Job. Clones error Datums (and their InputFiles) into a fresh Job,
// capped at min(original parallelism, len(error datums)); successful
// Datums are not rerun.
func (s *Service) RetryJob(ctx context.Context, jobID string) (*model.Job, error) {
	var newJob *model.Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		jobs := database.NewJobFacade(tx)
		datums := database.NewDatumFacade(tx)
		inputFiles := database.NewInputFileFacade(tx)
		newDatums := database.NewDatumFacade(tx)
		newInputFiles := database.NewInputFileFacade(tx)

		original, err := jobs.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if original.Status != model.JobError {
			return ferrors.StateMachine("retry_job requires job status error")
		}

		errDatums, err := datums.ListErrorByJob(ctx, jobID)
		if err != nil {
			return err
		}
		if len(errDatums) == 0 {
			return ferrors.StateMachine("job has no error datums to retry")
		}

		cappedSpec, err := capParallelism(original.PipelineSpec, len(errDatums))
		if err != nil {
			return ferrors.Internal(fmt.Errorf("capping retried job parallelism: %w", err))
		}

		newJob = &model.Job{
			ID:              uuid.NewString(),
			Status:          model.JobRunning,
			ExternalJobName: retryExternalName(original.ExternalJobName),
			PipelineSpec:    cappedSpec,
			Command:         original.Command,
			EgressURI:       original.EgressURI,
		}
		if err := jobs.Create(ctx, newJob); err != nil {
			return err
		}

		for _, d := range errDatums {
			files, err := inputFiles.ListByDatum(ctx, d.ID)
			if err != nil {
				return err
			}
			clone := &model.Datum{
				ID:                     uuid.NewString(),
				JobID:                  newJob.ID,
				Status:                 model.DatumReady,
				MaximumAllowedRunCount: d.MaximumAllowedRunCount,
			}
			if err := newDatums.CreateBatch(ctx, []*model.Datum{clone}); err != nil {
				return err
			}
			clonedFiles := make([]*model.InputFile, 0, len(files))
			for _, f := range files {
				clonedFiles = append(clonedFiles, &model.InputFile{
					ID:         uuid.NewString(),
					JobID:      newJob.ID,
					DatumID:    clone.ID,
					SourceURI:  f.SourceURI,
					TargetPath: f.TargetPath,
				})
			}
			if err := newInputFiles.CreateBatch(ctx, clonedFiles); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Submitting the workload happens outside the transaction, exactly
	// as pkg/launcher.Launch does for a fresh job: failure here does not
	// roll back the rows already committed, and the Babysitter's
	// vanished-job rule eventually marks the job error if the workload
	// never appears (spec §4.H).
	if err := s.submitWorkload(ctx, newJob); err != nil {
		log.Errorf("submitting kubernetes workload for retried job %s: %v", newJob.ID, err)
	}

	return newJob, nil
}

// submitWorkload renders and applies the retried job's Kubernetes
// workload from its (already parallelism-capped) pipeline spec.
func (s *Service) submitWorkload(ctx context.Context, job *model.Job) error {
	spec, err := launcher.ParsePipelineSpec(job.PipelineSpec)
	if err != nil {
		return fmt.Errorf("parsing retried job pipeline spec: %w", err)
	}

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
	return s.k8s.Apply(ctx, k8sJob)
}

// capParallelism rewrites a pipeline spec's parallelism_spec.constant to
// min(original, datumCount), per spec §4.E.7's "cap its parallelism at
// min(original_parallelism, len(error_datums))".
func capParallelism(spec []byte, datumCount int) ([]byte, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(spec, &decoded); err != nil {
		return nil, err
	}
	parallelism, _ := decoded["parallelism_spec"].(map[string]interface{})
	if parallelism == nil {
		parallelism = map[string]interface{}{}
	}
	current, _ := parallelism["constant"].(float64)
	capped := datumCount
	if current > 0 && int(current) < capped {
		capped = int(current)
	}
	parallelism["constant"] = capped
	decoded["parallelism_spec"] = parallelism
	return json.Marshal(decoded)
}

const retryNameSuffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// retryExternalName derives a fresh external job name for a retry,
// reusing the launcher's "<name>-<5-char-random>" convention (spec
// §4.H) so the retried job is distinguishable in `kubectl get jobs`.
func retryExternalName(original string) string {
	base := original
	if idx := strings.LastIndex(original, "-"); idx > 0 && len(original)-idx == 6 {
		base = original[:idx]
	}
	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = retryNameSuffixChars[rand.Intn(len(retryNameSuffixChars))]
	}
	return fmt.Sprintf("%s-%s", base, string(suffix))
}
