package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/calmstack/jobkeep/internal/job"
)

// Client communicates with a running jobkeep daemon over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new jobkeep API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// LaunchRequest describes a job to launch.
type LaunchRequest struct {
	Command       []string `json:"command"`
	TrackingLabel string   `json:"tracking_label,omitempty"`
}

// Launch starts a new job and returns its id.
func (c *Client) Launch(ctx context.Context, req LaunchRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/jobs", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Get returns a single job record, or nil if the job is unknown.
func (c *Client) Get(ctx context.Context, id string) (*job.Record, error) {
	var rec job.Record
	err := c.doJSON(ctx, http.MethodGet, c.jobURL(id), nil, &rec)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// List returns all known job records.
func (c *Client) List(ctx context.Context) ([]*job.Record, error) {
	var recs []*job.Record
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/jobs", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// FullLog returns the job's captured output. maxChars > 0 keeps only the
// trailing maxChars characters.
func (c *Client) FullLog(ctx context.Context, id string, maxChars int) (string, error) {
	u := c.jobURL(id) + "/log"
	if maxChars > 0 {
		u += "?max_chars=" + strconv.Itoa(maxChars)
	}
	var resp struct {
		Log string `json:"log"`
	}
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return "", err
	}
	return resp.Log, nil
}

// LogTail returns the last n lines of the job's output.
func (c *Client) LogTail(ctx context.Context, id string, n int) ([]string, error) {
	u := c.jobURL(id) + "/tail"
	if n > 0 {
		u += "?n=" + strconv.Itoa(n)
	}
	var resp struct {
		Lines []string `json:"lines"`
	}
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// Terminate requests termination of a job and returns the outcome, one of
// TERMINATED, ALREADY_STOPPED, NOT_FOUND or ERROR.
func (c *Client) Terminate(ctx context.Context, id string) (string, error) {
	var resp struct {
		Result string `json:"result"`
	}
	err := c.doJSON(ctx, http.MethodDelete, c.jobURL(id), nil, &resp)
	if err != nil {
		// NOT_FOUND and ERROR arrive as non-2xx but still carry the
		// result in the body.
		if apiErr, ok := err.(*APIError); ok && apiErr.Result != "" {
			return apiErr.Result, nil
		}
		return "", err
	}
	return resp.Result, nil
}

// Prune removes terminal jobs and returns the removed ids.
func (c *Client) Prune(ctx context.Context) ([]string, error) {
	var resp struct {
		Removed []string `json:"removed"`
	}
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/jobs/prune", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Removed, nil
}

// APIError is returned when the daemon responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
	Result     string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error: %s", e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (c *Client) jobURL(id string) string {
	return c.baseURL + "/jobs/" + url.PathEscape(id)
}

func (c *Client) doJSON(ctx context.Context, method, u string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, u, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "url", u)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error  string `json:"error"`
			Result string `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
			apiErr.Result = payload.Result
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
