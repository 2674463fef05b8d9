package agentrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fleettools/squawk/internal/retry"
)

// Sink is what a Runner reports heartbeats and progress to. The
// production implementation posts to the coordinator's HTTP API
// (`/agents/{id}/heartbeat`, `/agents/{id}/progress`); tests use an
// in-memory fake.
type Sink interface {
	Heartbeat(ctx context.Context, hb Heartbeat) error
	Progress(ctx context.Context, p Progress) error
}

// HTTPSink posts heartbeats and progress to the coordinator over HTTP,
// in the same shape as decomposition/planner.Client's httpClient+retry.Do:
// transient network failures go through the shared retry policy rather
// than a hand-rolled loop.
type HTTPSink struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewHTTPSink builds a Sink posting to baseURL (e.g.
// "http://localhost:8080/api/v1").
func NewHTTPSink(baseURL string) *HTTPSink {
	return &HTTPSink{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryCfg:   retry.DefaultConfig(),
	}
}

func (s *HTTPSink) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", path, err)
	}

	return retry.Do(ctx, s.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", path, err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("post %s: server error %d", path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return retry.Permanent(fmt.Errorf("post %s: client error %d", path, resp.StatusCode))
		}
		return nil
	})
}

// Heartbeat posts to /agents/{id}/heartbeat.
func (s *HTTPSink) Heartbeat(ctx context.Context, hb Heartbeat) error {
	return s.post(ctx, fmt.Sprintf("/agents/%s/heartbeat", hb.SpecialistID), hb)
}

// Progress posts to /agents/{id}/progress.
func (s *HTTPSink) Progress(ctx context.Context, p Progress) error {
	return s.post(ctx, fmt.Sprintf("/agents/%s/progress", p.SpecialistID), p)
}
