package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/faradayio/falconeri/pkg/database/model"
)

// client is a thin HTTP client for the Control Service API (spec §6),
// mirroring pkg/worker.Client's request helper but scoped to the
// operations the CLI needs.
type client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

func newClient(baseURL, password string) *client {
	return &client{baseURL: baseURL, password: password, httpClient: &http.Client{}}
}

func (c *client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
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

// createJob calls POST /jobs with a raw pipeline spec document.
func (c *client) createJob(ctx context.Context, spec []byte) (*model.Job, error) {
	var job model.Job
	if err := c.do(ctx, http.MethodPost, "/jobs", spec, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// listJobs calls GET /jobs. With jobName empty it returns every job;
// with jobName set, the Control Service returns a single matching job
// instead of an array (spec §6 GET /jobs?job_name=<name>).
func (c *client) listJobs(ctx context.Context, jobName string) ([]*model.Job, error) {
	if jobName != "" {
		var job model.Job
		if err := c.do(ctx, http.MethodGet, "/jobs?job_name="+jobName, nil, &job); err != nil {
			return nil, err
		}
		return []*model.Job{&job}, nil
	}
	var jobs []*model.Job
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// getJob calls GET /jobs/<id>.
func (c *client) getJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// retryJob calls POST /jobs/<id>/retry.
func (c *client) retryJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := c.do(ctx, http.MethodPost, "/jobs/"+id+"/retry", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
