// Package model holds the GORM entities of spec §3: Job, Datum,
// InputFile and OutputFile. Shapes and tags follow the teacher's entity
// style (AMD-AGI-Primus-SaFE Lens core pkg/models: uuid string primary
// keys, gorm.Model-style timestamps spelled out explicitly, status held
// as a string column with application-level enum constants rather than
// a Postgres enum type, so sqlite-backed unit tests behave identically
// to Postgres).
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus enumerates the states of a Job's state machine (spec §3.1).
type JobStatus string

const (
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobError    JobStatus = "error"
	// JobCanceled is a valid terminal status with no implemented trigger
	// path yet (spec Open Question: "the spec carries the state but
	// leaves the trigger for future work").
	JobCanceled JobStatus = "canceled"
)

// DatumStatus enumerates the states of a Datum's state machine (spec §3.2).
type DatumStatus string

const (
	DatumReady     DatumStatus = "ready"
	DatumRunning   DatumStatus = "running"
	DatumDone      DatumStatus = "done"
	DatumError     DatumStatus = "error"
	DatumWillRetry DatumStatus = "will_retry"
)

// OutputFileStatus enumerates the states of an OutputFile (spec §4.E
// create_output_files/patch_output_files): created as running, then
// patched to done or error once the upload is confirmed.
type OutputFileStatus string

const (
	OutputFileRunning OutputFileStatus = "running"
	OutputFileDone    OutputFileStatus = "done"
	OutputFileError   OutputFileStatus = "error"
)

// Job is a single batch-processing run: a pipeline spec, an egress
// destination, and the command every worker invokes once per Datum.
type Job struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Status           JobStatus `gorm:"type:varchar(16);not null;index"`
	ExternalJobName  string    `gorm:"type:varchar(255);index"`
	PipelineSpec     []byte    `gorm:"type:jsonb"`
	Command          []byte    `gorm:"type:jsonb;not null"`
	EgressURI        string    `gorm:"type:text"`
	Error            string    `gorm:"type:text"`
	ErrorDetails     string    `gorm:"type:text"`

	Datums      []Datum      `gorm:"foreignKey:JobID"`
	InputFiles  []InputFile  `gorm:"foreignKey:JobID"`
	OutputFiles []OutputFile `gorm:"foreignKey:JobID"`
}

// BeforeCreate assigns a uuid primary key when one hasn't been set,
// mirroring the teacher's BaseModel.BeforeCreate hook.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// IsFinished reports whether the Job has left the Running state.
func (j *Job) IsFinished() bool {
	return j.Status == JobDone || j.Status == JobError || j.Status == JobCanceled
}

// Datum is one atomic unit of work within a Job: a fixed combination of
// input files that a single worker invocation processes exactly once at
// a time (spec §3.2, §4.E invariant I-RESV-1).
type Datum struct {
	ID                    string `gorm:"type:uuid;primaryKey"`
	JobID                 string `gorm:"type:uuid;not null;index"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Status                DatumStatus `gorm:"type:varchar(16);not null;index"`
	Error                 string      `gorm:"type:text"`
	Backtrace             string      `gorm:"type:text"`
	ProcessStatus         string      `gorm:"type:text"`
	AttemptedRunCount     int         `gorm:"not null;default:0"`
	MaximumAllowedRunCount int        `gorm:"not null;default:1"`
	NodeName              string      `gorm:"type:varchar(255)"`
	PodName               string      `gorm:"type:varchar(255)"`
	ReservedAt            *time.Time
	FinishedAt            *time.Time

	InputFiles  []InputFile  `gorm:"foreignKey:DatumID"`
	OutputFiles []OutputFile `gorm:"foreignKey:DatumID"`
}

func (d *Datum) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// CanRetry reports whether the Datum has attempts remaining under its
// per-job retry cap (spec §4.E invariant I-RESV-3).
func (d *Datum) CanRetry() bool {
	return d.AttemptedRunCount < d.MaximumAllowedRunCount
}

// InputFile is one source object a Datum must sync down into its
// working directory before its worker command runs (spec §3.3).
type InputFile struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	JobID      string `gorm:"type:uuid;not null;index"`
	DatumID    string `gorm:"type:uuid;not null;index"`
	CreatedAt  time.Time
	SourceURI  string `gorm:"type:text;not null"`
	TargetPath string `gorm:"type:text;not null"`
}

func (f *InputFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// OutputFile is one object a Datum's worker produced and synced up to
// the Job's egress URI (spec §3.4).
type OutputFile struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	JobID           string `gorm:"type:uuid;not null;index"`
	DatumID         string `gorm:"type:uuid;not null;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DestinationURI  string           `gorm:"type:text;not null"`
	Status          OutputFileStatus `gorm:"type:varchar(16);not null;default:'running'"`
}

func (f *OutputFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// AllModels lists every entity for AutoMigrate, mirroring the teacher's
// model registry passed to db.AutoMigrate in its migration bootstrap.
func AllModels() []interface{} {
	return []interface{}{
		&Job{},
		&Datum{},
		&InputFile{},
		&OutputFile{},
	}
}
