package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/faradayio/falconeri/pkg/storage"
)

// Worker drives the per-pod reservation loop of spec §6: poll
// reserve_next_datum, reset working directories, sync inputs down, run
// the transform command, sync outputs up, and report status back.
type Worker struct {
	client      *Client
	storage     *storage.Factory
	jobID       string
	command     []string
	egressURI   string
	inputRoot   string
	scratchRoot string
	nodeName    string
	podName     string
	pollInterval time.Duration
}

// Config holds the inputs Worker needs to run a job's reservation loop.
type Config struct {
	Client       *Client
	Storage      *storage.Factory
	JobID        string
	Command      []string
	EgressURI    string
	InputRoot    string
	ScratchRoot  string
	NodeName     string
	PodName      string
	PollInterval time.Duration
}

// New builds a Worker from cfg, defaulting PollInterval to 2s.
func New(cfg Config) *Worker {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		client:       cfg.Client,
		storage:      cfg.Storage,
		jobID:        cfg.JobID,
		command:      cfg.Command,
		egressURI:    cfg.EgressURI,
		inputRoot:    cfg.InputRoot,
		scratchRoot:  cfg.ScratchRoot,
		nodeName:     cfg.NodeName,
		podName:      cfg.PodName,
		pollInterval: interval,
	}
}

// outDir is the egress staging directory recreated between datums
// (spec §6: "<input-root>/out recreated").
func (w *Worker) outDir() string {
	return filepath.Join(w.inputRoot, "out")
}

// Run polls reserve_next_datum until the Job has no more ready datums,
// processing one at a time. It returns nil once reservation returns
// (nil, nil, nil): the caller's Job has no more work for this worker.
func (w *Worker) Run(ctx context.Context) error {
	for {
		datum, files, err := w.client.ReserveNextDatum(ctx, w.jobID, w.nodeName, w.podName)
		if err != nil {
			return fmt.Errorf("reserving next datum: %w", err)
		}
		if datum == nil {
			log.Info("no more datums ready, worker exiting")
			return nil
		}

		if err := w.processDatum(ctx, datum, files); err != nil {
			log.Errorf("processing datum %s: %v", datum.ID, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *Worker) processDatum(ctx context.Context, datum *model.Datum, files []*model.InputFile) error {
	log.WithFields(log.Fields{"datum_id": datum.ID}).Info("processing datum")

	if err := w.resetWorkingDirs(); err != nil {
		return w.reportError(ctx, datum.ID, "", fmt.Sprintf("resetting working directories: %v", err), "")
	}

	for _, f := range files {
		if err := w.storage.SyncDown(ctx, f.SourceURI, f.TargetPath); err != nil {
			return w.reportError(ctx, datum.ID, "", fmt.Sprintf("syncing down %s: %v", f.SourceURI, err), "")
		}
	}

	output := &captureBuffer{}
	exitErr := w.runCommand(ctx, output)
	capturedOutput := output.String()

	if exitErr != nil {
		return w.reportError(ctx, datum.ID, capturedOutput, exitErr.Error(), "")
	}

	if err := w.syncUpAndRegister(ctx, datum); err != nil {
		return w.reportError(ctx, datum.ID, capturedOutput, fmt.Sprintf("syncing outputs up: %v", err), "")
	}

	return w.client.PatchDatumDone(ctx, datum.ID, capturedOutput)
}

func (w *Worker) reportError(ctx context.Context, datumID, capturedOutput, errMsg, backtrace string) error {
	if err := w.client.PatchDatumError(ctx, datumID, capturedOutput, errMsg, backtrace); err != nil {
		return fmt.Errorf("reporting datum error (original error %q): %w", errMsg, err)
	}
	return nil
}

// resetWorkingDirs recursively deletes the input root and scratch root
// and recreates <input-root>/out, per spec §6's worker environment
// contract.
func (w *Worker) resetWorkingDirs() error {
	if err := os.RemoveAll(w.inputRoot); err != nil {
		return err
	}
	if err := os.RemoveAll(w.scratchRoot); err != nil {
		return err
	}
	if err := os.MkdirAll(w.outDir(), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(w.scratchRoot, 0o755)
}

// runCommand runs the pipeline's transform command, wiring stdout and
// stderr to the same captureBuffer (spec §5's shared producer/consumer
// buffer). Exit code 0 means success; any other outcome fails the
// datum (spec §6).
func (w *Worker) runCommand(ctx context.Context, output *captureBuffer) error {
	if len(w.command) == 0 {
		return fmt.Errorf("transform command is empty")
	}
	cmd := exec.CommandContext(ctx, w.command[0], w.command[1:]...)
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.Env = append(os.Environ(),
		"FALCONERI_NODE_NAME="+w.nodeName,
		"FALCONERI_POD_NAME="+w.podName,
	)
	return cmd.Run()
}

// syncUpAndRegister registers one OutputFile (status running) per
// top-level entry before uploading anything, mirroring the Planner's
// TopLevelEntries convention on the way out, then mirrors the out
// directory to the Job's egress URI and patches the rows to their
// final status. The row is created before the upload starts so a
// failed upload still leaves an audit trail rather than no record at
// all (spec §3's OutputFile lifecycle).
func (w *Worker) syncUpAndRegister(ctx context.Context, datum *model.Datum) error {
	entries, err := os.ReadDir(w.outDir())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	files := make([]*model.OutputFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, &model.OutputFile{
			JobID:          w.jobID,
			DatumID:        datum.ID,
			DestinationURI: strings.TrimSuffix(w.egressURI, "/") + "/" + e.Name(),
		})
	}
	created, err := w.client.CreateOutputFiles(ctx, files)
	if err != nil {
		return err
	}

	syncErr := w.storage.SyncUp(ctx, w.outDir(), w.egressURI)
	status := model.OutputFileDone
	if syncErr != nil {
		status = model.OutputFileError
	}
	patches := make([]database.StatusPatch, 0, len(created))
	for _, of := range created {
		patches = append(patches, database.StatusPatch{ID: of.ID, Status: status})
	}
	if err := w.client.PatchOutputFiles(ctx, patches); err != nil {
		return fmt.Errorf("patching output file status: %w", err)
	}
	return syncErr
}

// UnmarshalCommand decodes a Job's persisted Command column (spec §3.1)
// back into argv form for exec.CommandContext.
func UnmarshalCommand(raw []byte) ([]string, error) {
	var cmd []string
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("unmarshaling command: %w", err)
	}
	return cmd, nil
}
