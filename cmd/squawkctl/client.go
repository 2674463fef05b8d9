// Package main implements squawkctl, a thin HTTP client over squawkd's
// documented API contract for local operators — decompose,
// status, checkpoint, resume. It speaks the surface internal/apidoc
// documents; it does not itself serve that surface.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fleettools/squawk/checkpoint"
	"github.com/fleettools/squawk/missionstore"
	"github.com/fleettools/squawk/recovery"
)

// Client is a thin wrapper over squawkd's HTTP contract: one
// *http.Client with a generous timeout, one do() helper every call
// funnels through.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL (e.g. "http://localhost:8080/api/v1").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	if respBody == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("unmarshal response: %w (body: %s)", err, string(data))
	}
	return nil
}

// DecomposeRequest is the body of POST /missions/decompose.
type DecomposeRequest struct {
	Task     string `json:"task"`
	RepoRoot string `json:"repo_root"`
}

// DecomposeResponse is its response.
type DecomposeResponse struct {
	Mission *missionstore.Mission `json:"mission"`
}

// Decompose submits a task for decomposition into a mission and sorties.
func (c *Client) Decompose(ctx context.Context, task, repoRoot string) (*DecomposeResponse, error) {
	var resp DecomposeResponse
	if err := c.do(ctx, http.MethodPost, "/missions/decompose", DecomposeRequest{Task: task, RepoRoot: repoRoot}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MissionStatus retrieves a mission's current state.
func (c *Client) MissionStatus(ctx context.Context, missionID string) (*missionstore.Mission, error) {
	var m missionstore.Mission
	if err := c.do(ctx, http.MethodGet, "/missions/"+missionID, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateCheckpointRequest is the body of POST /checkpoints.
type CreateCheckpointRequest struct {
	MissionID string `json:"mission_id"`
	Trigger   string `json:"trigger"`
}

// CreateCheckpoint forces a checkpoint for the given mission.
func (c *Client) CreateCheckpoint(ctx context.Context, missionID, trigger string) (*checkpoint.Checkpoint, error) {
	var chk checkpoint.Checkpoint
	req := CreateCheckpointRequest{MissionID: missionID, Trigger: trigger}
	if err := c.do(ctx, http.MethodPost, "/checkpoints", req, &chk); err != nil {
		return nil, err
	}
	return &chk, nil
}

// ResumeRequest is the body of POST /checkpoints/{id}/resume.
type ResumeRequest struct {
	Force bool `json:"force"`
}

// Resume runs recovery from checkpointID, optionally overriding risk checks with force.
func (c *Client) Resume(ctx context.Context, checkpointID string, force bool) (*recovery.Result, error) {
	var result recovery.Result
	req := ResumeRequest{Force: force}
	if err := c.do(ctx, http.MethodPost, "/checkpoints/"+checkpointID+"/resume", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
