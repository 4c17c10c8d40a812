package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSolver talks to the external challenge solving service.
type HTTPSolver struct {
	serviceURL string
	client     *http.Client
}

// NewHTTPSolver creates a solver client for the given service URL.
func NewHTTPSolver(serviceURL string, timeout time.Duration) *HTTPSolver {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSolver{
		serviceURL: serviceURL,
		client:     &http.Client{Timeout: timeout},
	}
}

type solveRequestBody struct {
	ClientKey string `json:"client_key"`
	SiteKey   string `json:"site_key"`
	ProjectID string `json:"project_id,omitempty"`
}

type solveResponseBody struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// Solve submits the challenge and waits for the solved token.
func (s *HTTPSolver) Solve(ctx context.Context, req SolveRequest) (string, error) {
	body, err := json.Marshal(solveRequestBody{
		ClientKey: req.ClientKey,
		SiteKey:   req.SiteKey,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal solve request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serviceURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build solve request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call solving service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read solve response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("solving service returned %d: %s", resp.StatusCode, raw)
	}

	var parsed solveResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode solve response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("solving service error: %s", parsed.Error)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("solving service returned an empty token")
	}
	return parsed.Token, nil
}
