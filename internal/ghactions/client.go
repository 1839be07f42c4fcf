// Package ghactions is a small GitHub REST client for the Actions endpoints
// the channel lock needs: dispatching a workflow, listing its runs and
// reading one run.
package ghactions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// apiVersion pins the REST API version header.
const apiVersion = "2022-11-28"

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// Run statuses and conclusions the lock cares about.
const (
	StatusCompleted   = "completed"
	ConclusionSuccess = "success"
)

// Config holds configuration for a Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Token is sent as a bearer token. Required.
	Token string

	// HTTPClient defaults to an http.Client with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Client calls the GitHub Actions REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "https://") && !strings.HasPrefix(baseURL, "http://") {
		return nil, fmt.Errorf("github: base URL must be http(s) (got %q)", baseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{baseURL: baseURL, token: cfg.Token, httpClient: httpClient, logger: logger}, nil
}

// DispatchRequest is the body of a workflow_dispatch call.
type DispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// WorkflowRun is the subset of a workflow run the lock reads.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`     // "queued", "in_progress", "completed"
	Conclusion string    `json:"conclusion"` // "success", "failure", "cancelled", ""
	HTMLURL    string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Completed reports whether the run has finished.
func (r *WorkflowRun) Completed() bool {
	return r.Status == StatusCompleted
}

// WorkflowRunList is the response of the list-runs endpoint.
type WorkflowRunList struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// DispatchWorkflow triggers workflow (file name or numeric id) in repo
// ("owner/name"). GitHub answers 204 with no body and no run id; the run
// has to be found by listing.
func (c *Client) DispatchWorkflow(ctx context.Context, repo, workflow string, req DispatchRequest) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/dispatches", owner, name, workflow)
	if _, err := c.do(ctx, http.MethodPost, path, req); err != nil {
		return fmt.Errorf("dispatching workflow %s in %s: %w", workflow, repo, err)
	}
	c.logger.Debug("workflow dispatched", "repo", repo, "workflow", workflow, "ref", req.Ref)
	return nil
}

// ListWorkflowRuns returns the most recent runs of workflow, newest first.
func (c *Client) ListWorkflowRuns(ctx context.Context, repo, workflow string, perPage int) ([]WorkflowRun, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/runs?per_page=%d", owner, name, workflow, perPage)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("listing runs of %s in %s: %w", workflow, repo, err)
	}
	var list WorkflowRunList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("github: decoding run list: %w", err)
	}
	return list.WorkflowRuns, nil
}

// GetWorkflowRun retrieves a single workflow run by id.
func (c *Client) GetWorkflowRun(ctx context.Context, repo string, runID int64) (*WorkflowRun, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d", owner, name, runID)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting workflow run %d in %s: %w", runID, repo, err)
	}
	var run WorkflowRun
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("github: decoding run: %w", err)
	}
	return &run, nil
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("github: repository must be owner/name (got %q)", repo)
	}
	return owner, name, nil
}

func (c *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("github: reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		apiErr.Message = payload.Message
		apiErr.DocumentationURL = payload.DocumentationURL
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
