// Package api implements the Control Service's HTTP surface (spec
// §6): the only entry point workers, the CLI and the Babysitter use to
// touch Job/Datum state. Grounded on the teacher's Handler/RegisterRoutes
// pattern (AMD-AGI-Primus-SaFE Lens skills-repository pkg/api/
// handler.go): a Handler struct holding the service layer, a
// package-level RegisterRoutes wiring a gin.Engine, one method per
// route returning JSON via c.JSON or deferring to c.Error for the
// HandleErrors middleware to translate.
package api

import (
	"net/http"

	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/database/model"
	"github.com/faradayio/falconeri/pkg/ferrors"
	"github.com/faradayio/falconeri/pkg/launcher"
	"github.com/faradayio/falconeri/pkg/reservation"
	"github.com/gin-gonic/gin"
)

// Handler serves every route in spec §6's HTTP API table.
type Handler struct {
	jobs         *database.JobFacade
	reservations *reservation.Service
	launcher     *launcher.Launcher
}

// NewHandler builds a Handler bound to the given service layer.
func NewHandler(jobs *database.JobFacade, reservations *reservation.Service, l *launcher.Launcher) *Handler {
	return &Handler{jobs: jobs, reservations: reservations, launcher: l}
}

// RegisterRoutes wires every route of spec §6's HTTP API table onto
// router. auth and errorHandling are applied as a group-wide chain so
// every route gets Basic auth and consistent error translation.
func RegisterRoutes(router *gin.Engine, h *Handler, chain ...gin.HandlerFunc) {
	api := router.Group("/", chain...)
	{
		api.GET("/version", h.Version)
		api.POST("/jobs", h.CreateJob)
		api.GET("/jobs", h.ListOrGetJobByName)
		api.GET("/jobs/:id", h.GetJob)
		api.POST("/jobs/:id/retry", h.RetryJob)
		api.POST("/jobs/:id/reserve_next_datum", h.ReserveNextDatum)
		api.PATCH("/datums/:id", h.PatchDatum)
		api.POST("/output_files", h.CreateOutputFiles)
		api.PATCH("/output_files", h.PatchOutputFiles)
	}
}

// Version returns the Control Service's semver (spec §6: GET /version).
func (h *Handler) Version(c *gin.Context) {
	c.String(http.StatusOK, Version)
}

// CreateJob launches a new Job from a pipeline spec document (spec §6:
// POST /jobs). The request body is the raw pipeline spec; Launch parses
// it strictly.
func (h *Handler) CreateJob(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.Error(ferrors.Validation("reading request body: %v", err))
		return
	}
	job, err := h.launcher.Launch(c.Request.Context(), raw)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListOrGetJobByName implements GET /jobs?job_name=<name> (spec §6) and,
// with no query parameter, the supplemented "list every job" endpoint
// (SPEC_FULL.md).
func (h *Handler) ListOrGetJobByName(c *gin.Context) {
	jobs, err := h.jobs.List(c.Request.Context())
	if err != nil {
		c.Error(ferrors.Transport(err))
		return
	}

	name := c.Query("job_name")
	if name == "" {
		c.JSON(http.StatusOK, jobs)
		return
	}
	for _, j := range jobs {
		if j.ExternalJobName == name {
			c.JSON(http.StatusOK, j)
			return
		}
	}
	c.Error(ferrors.NotFound("no job named %q", name))
}

// GetJob implements GET /jobs/<id> (spec §6).
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err == database.ErrNotFound {
		c.Error(ferrors.NotFound("job %s not found", c.Param("id")))
		return
	}
	if err != nil {
		c.Error(ferrors.Transport(err))
		return
	}
	c.JSON(http.StatusOK, job)
}

// RetryJob implements POST /jobs/<id>/retry (spec §6, §4.E.7).
func (h *Handler) RetryJob(c *gin.Context) {
	job, err := h.reservations.RetryJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type reserveNextDatumRequest struct {
	NodeName string `json:"node_name" binding:"required"`
	PodName  string `json:"pod_name" binding:"required"`
}

type reserveNextDatumResponse struct {
	Datum      *model.Datum      `json:"datum"`
	InputFiles []*model.InputFile `json:"input_files"`
}

// ReserveNextDatum implements POST /jobs/<id>/reserve_next_datum (spec
// §6, §4.E.1). Responds with null when no Datum is available.
func (h *Handler) ReserveNextDatum(c *gin.Context) {
	var req reserveNextDatumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.Validation("parsing reserve_next_datum request: %v", err))
		return
	}

	datum, files, err := h.reservations.ReserveNextDatum(c.Request.Context(), c.Param("id"), req.NodeName, req.PodName)
	if err != nil {
		c.Error(err)
		return
	}
	if datum == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, reserveNextDatumResponse{Datum: datum, InputFiles: files})
}

type patchDatumRequest struct {
	Status       string `json:"status" binding:"required"`
	Output       string `json:"output"`
	ErrorMessage string `json:"error_message"`
	Backtrace    string `json:"backtrace"`
}

// PatchDatum implements PATCH /datums/<id> (spec §6): status must be
// "done" or "error", dispatching to mark_datum_as_done or
// mark_datum_as_error (spec §4.E.2, §4.E.3).
func (h *Handler) PatchDatum(c *gin.Context) {
	var req patchDatumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.Validation("parsing datum patch request: %v", err))
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()
	var datum *model.Datum
	var err error
	switch model.DatumStatus(req.Status) {
	case model.DatumDone:
		datum, err = h.reservations.MarkDatumAsDone(ctx, id, req.Output)
	case model.DatumError:
		datum, err = h.reservations.MarkDatumAsError(ctx, id, req.Output, req.ErrorMessage, req.Backtrace)
	default:
		c.Error(ferrors.Validation("datum patch status must be done or error, got %q", req.Status))
		return
	}
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, datum)
}

type newOutputFileRequest struct {
	JobID          string `json:"job_id" binding:"required"`
	DatumID        string `json:"datum_id" binding:"required"`
	DestinationURI string `json:"destination_uri" binding:"required"`
}

// CreateOutputFiles implements POST /output_files (spec §6, §4.E.5).
func (h *Handler) CreateOutputFiles(c *gin.Context) {
	var reqs []newOutputFileRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.Error(ferrors.Validation("parsing output files request: %v", err))
		return
	}

	files := make([]*model.OutputFile, 0, len(reqs))
	for _, r := range reqs {
		files = append(files, &model.OutputFile{
			JobID:          r.JobID,
			DatumID:        r.DatumID,
			DestinationURI: r.DestinationURI,
			Status:         model.OutputFileRunning,
		})
	}

	created, err := h.reservations.CreateOutputFiles(c.Request.Context(), files)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, created)
}

type outputFileStatusPatch struct {
	ID     string `json:"id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// PatchOutputFiles implements PATCH /output_files (spec §6, §4.E.6).
func (h *Handler) PatchOutputFiles(c *gin.Context) {
	var reqs []outputFileStatusPatch
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.Error(ferrors.Validation("parsing output file patch request: %v", err))
		return
	}

	patches := make([]database.StatusPatch, 0, len(reqs))
	for _, r := range reqs {
		patches = append(patches, database.StatusPatch{ID: r.ID, Status: model.OutputFileStatus(r.Status)})
	}

	if err := h.reservations.PatchOutputFiles(c.Request.Context(), patches); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
