// Package worker implements the per-pod worker process of spec §6: poll
// reserve_next_datum, sync inputs down, run the transform command once
// per Datum, sync outputs up, and patch status back to the Control
// Service. Grounded on the teacher's exec.CommandContext +
// bytes.Buffer capture idiom (AMD-AGI-Primus-SaFE Lens jobs
// pkg/jobs/dataplane_installer/stages.go), generalized from a one-shot
// kubectl invocation to a long-running reservation loop.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/database/model"
)

// Client is a thin HTTP client for the Control Service API (spec §6),
// authenticating with the shared Basic-auth credential.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL using the shared
// "falconeri" Basic-auth credential.
func NewClient(baseURL, password string) *Client {
	return &Client{baseURL: baseURL, password: password, httpClient: &http.Client{}}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth("falconeri", c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJob calls GET /jobs/<id>, used once at worker startup to read the
// transform command and egress URI.
func (c *Client) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

type reserveNextDatumResponse struct {
	Datum      *model.Datum        `json:"datum"`
	InputFiles []*model.InputFile `json:"input_files"`
}

// ReserveNextDatum calls POST /jobs/<id>/reserve_next_datum. Returns
// (nil, nil, nil) when no Datum is ready.
func (c *Client) ReserveNextDatum(ctx context.Context, jobID, nodeName, podName string) (*model.Datum, []*model.InputFile, error) {
	var resp reserveNextDatumResponse
	path := fmt.Sprintf("/jobs/%s/reserve_next_datum", jobID)
	body := map[string]string{"node_name": nodeName, "pod_name": podName}
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Datum, resp.InputFiles, nil
}

// PatchDatumDone calls PATCH /datums/<id> with status "done".
func (c *Client) PatchDatumDone(ctx context.Context, datumID, output string) error {
	body := map[string]string{"status": string(model.DatumDone), "output": output}
	return c.do(ctx, http.MethodPatch, "/datums/"+datumID, body, nil)
}

// PatchDatumError calls PATCH /datums/<id> with status "error".
func (c *Client) PatchDatumError(ctx context.Context, datumID, output, errMsg, backtrace string) error {
	body := map[string]string{
		"status":        string(model.DatumError),
		"output":        output,
		"error_message": errMsg,
		"backtrace":     backtrace,
	}
	return c.do(ctx, http.MethodPatch, "/datums/"+datumID, body, nil)
}

type newOutputFile struct {
	JobID          string `json:"job_id"`
	DatumID        string `json:"datum_id"`
	DestinationURI string `json:"destination_uri"`
}

// CreateOutputFiles calls POST /output_files.
func (c *Client) CreateOutputFiles(ctx context.Context, files []*model.OutputFile) ([]*model.OutputFile, error) {
	reqs := make([]newOutputFile, 0, len(files))
	for _, f := range files {
		reqs = append(reqs, newOutputFile{JobID: f.JobID, DatumID: f.DatumID, DestinationURI: f.DestinationURI})
	}
	var created []*model.OutputFile
	if err := c.do(ctx, http.MethodPost, "/output_files", reqs, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// PatchOutputFiles calls PATCH /output_files.
func (c *Client) PatchOutputFiles(ctx context.Context, patches []database.StatusPatch) error {
	type patchReq struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	reqs := make([]patchReq, 0, len(patches))
	for _, p := range patches {
		reqs = append(reqs, patchReq{ID: p.ID, Status: string(p.Status)})
	}
	return c.do(ctx, http.MethodPatch, "/output_files", reqs, nil)
}
