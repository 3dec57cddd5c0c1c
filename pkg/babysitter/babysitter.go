// Package babysitter implements the periodic reconciler of spec §4.G:
// on each tick, catch stalled/vanished jobs, release zombie datums, and
// requeue retry-eligible datums. Grounded on the teacher's data-plane
// jobs runner (AMD-AGI-Primus-SaFE Lens jobs pkg/jobs/runner.go):
// robfig/cron with cron.WithChain(cron.SkipIfStillRunning(...)) so a
// slow tick never overlaps the next one, generalized from a registry of
// distinct scheduled jobs to falconeri's single reconcile tick running
// on a fixed interval.
package babysitter

import (
	"context"
	"fmt"
	"time"

	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/k8sadapter"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/faradayio/falconeri/pkg/reservation"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Babysitter runs the reconciler on a cron schedule. Multiple replicas
// may run concurrently; every operation is idempotent under row
// locking (spec §4.G).
type Babysitter struct {
	db               *gorm.DB
	k8s              *k8sadapter.Adapter
	reservations     *reservation.Service
	tickInterval     time.Duration
	vanishedJobAfter time.Duration
	cron             *cron.Cron
}

// New builds a Babysitter bound to db and the cluster adapter.
func New(db *gorm.DB, k8s *k8sadapter.Adapter, tickInterval, vanishedJobAfter time.Duration) *Babysitter {
	return &Babysitter{
		db:               db,
		k8s:              k8s,
		reservations:     reservation.New(db, k8s),
		tickInterval:     tickInterval,
		vanishedJobAfter: vanishedJobAfter,
	}
}

// Start schedules the reconcile tick and returns immediately; the tick
// runs in background goroutines owned by the cron scheduler.
func (b *Babysitter) Start(ctx context.Context) error {
	b.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	schedule := fmt.Sprintf("@every %s", b.tickInterval)
	_, err := b.cron.AddFunc(schedule, func() {
		if err := b.Tick(ctx); err != nil {
			log.Errorf("babysitter tick failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling babysitter tick: %w", err)
	}
	b.cron.Start()
	log.Infof("babysitter started, tick interval %s", b.tickInterval)
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight tick.
func (b *Babysitter) Stop() {
	if b.cron == nil {
		return
	}
	ctx := b.cron.Stop()
	<-ctx.Done()
}

// Tick runs one full reconcile pass: stalled/vanished jobs, zombie
// datums, then retry-eligible datums, in that order (spec §4.G).
func (b *Babysitter) Tick(ctx context.Context) error {
	if err := b.reconcileRunningJobs(ctx); err != nil {
		log.Errorf("reconciling running jobs: %v", err)
	}
	if err := b.reconcileZombieDatums(ctx); err != nil {
		log.Errorf("reconciling zombie datums: %v", err)
	}
	if err := b.reconcileRetryEligibleDatums(ctx); err != nil {
		log.Errorf("reconciling retry-eligible datums: %v", err)
	}
	return nil
}

// reconcileRunningJobs implements spec §4.G.1: for every Running Job,
// catch any completion the event path missed, then mark vanished jobs
// (older than vanishedJobAfter with no matching Kubernetes Job) as Error.
func (b *Babysitter) reconcileRunningJobs(ctx context.Context) error {
	jobs := database.NewJobFacade(b.db)
	running, err := jobs.List(ctx)
	if err != nil {
		return err
	}

	liveJobNames, err := b.k8s.ListJobNames(ctx)
	if err != nil {
		return fmt.Errorf("listing kubernetes jobs: %w", err)
	}

	now := time.Now()
	for _, job := range running {
		if job.Status != model.JobRunning {
			continue
		}
		if err := b.reservations.UpdateStatusIfDone(ctx, job.ID); err != nil {
			log.Errorf("update_status_if_done for job %s: %v", job.ID, err)
			continue
		}

		if now.Sub(job.CreatedAt) <= b.vanishedJobAfter {
			continue
		}
		if _, exists := liveJobNames[job.ExternalJobName]; exists {
			continue
		}
		if err := jobs.MarkError(ctx, job.ID,
			"kubernetes workload vanished",
			"no kubernetes job with this external name exists and the job has outlived the vanished-job window"); err != nil {
			log.Errorf("marking vanished job %s as error: %v", job.ID, err)
		} else {
			log.WithFields(log.Fields{"job_id": job.ID}).Warn("marked job error: workload vanished")
		}
	}
	return nil
}

// reconcileZombieDatums implements spec §4.G.2: Running datums whose
// pod no longer exists are zombies, and are marked Error.
func (b *Babysitter) reconcileZombieDatums(ctx context.Context) error {
	datums := database.NewDatumFacade(b.db)

	candidates, err := datums.RunningByJobStatus(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	livePods, err := b.k8s.ListRunningPodNames(ctx)
	if err != nil {
		return fmt.Errorf("listing running pods: %w", err)
	}

	for _, d := range candidates {
		if _, alive := livePods[d.PodName]; alive {
			continue
		}
		marked, err := datums.MarkZombie(ctx, d.ID)
		if err != nil {
			log.Errorf("marking zombie datum %s: %v", d.ID, err)
			continue
		}
		if !marked {
			continue
		}
		log.WithFields(log.Fields{"datum_id": d.ID, "pod_name": d.PodName}).Warn("marked datum error: pod vanished")
		if err := b.reservations.UpdateStatusIfDone(ctx, d.JobID); err != nil {
			log.Errorf("update_status_if_done for job %s: %v", d.JobID, err)
		}
	}
	return nil
}

// reconcileRetryEligibleDatums implements spec §4.G.3: Error datums of
// a Running job with attempts remaining are requeued to Ready, and any
// OutputFiles from the failed attempt are deleted.
func (b *Babysitter) reconcileRetryEligibleDatums(ctx context.Context) error {
	datums := database.NewDatumFacade(b.db)
	outputFiles := database.NewOutputFileFacade(b.db)

	candidates, err := datums.RetryEligibleByJob(ctx)
	if err != nil {
		return err
	}

	for _, d := range candidates {
		requeued, err := datums.RequeueIfEligible(ctx, d.ID)
		if err != nil {
			log.Errorf("requeueing datum %s: %v", d.ID, err)
			continue
		}
		if !requeued {
			continue
		}
		if err := outputFiles.DeleteByDatum(ctx, d.ID); err != nil {
			log.Errorf("deleting stale output files for datum %s: %v", d.ID, err)
		}
		log.WithFields(log.Fields{"datum_id": d.ID}).Info("requeued datum for retry")
	}
	return nil
}
