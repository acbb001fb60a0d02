package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
)

// API is the slice of the submission backend the polling engine consumes.
type API interface {
	SubmitJob(ctx context.Context, req domain.SubmitJobRequest) (*domain.SubmitJobResponse, error)
	SubmitBatch(ctx context.Context, req domain.SubmitBatchRequest) (*domain.SubmitBatchResponse, error)
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error)
	Upload(ctx context.Context, handle string, body []byte) error
}

// APIError is a non-2xx response from the backend. 4xx responses are caller
// errors and never retried; everything else is treated as transient.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the same request could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode < 400 || e.StatusCode >= 500
}

var _ API = (*HTTPClient)(nil)

// HTTPClient talks JSON to the submission API.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
}

// NewHTTPClient creates an API client for the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SubmitJob(ctx context.Context, req domain.SubmitJobRequest) (*domain.SubmitJobResponse, error) {
	out := &domain.SubmitJobResponse{}
	if err := c.postJSON(ctx, "/api/v1/jobs", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) SubmitBatch(ctx context.Context, req domain.SubmitBatchRequest) (*domain.SubmitBatchResponse, error) {
	out := &domain.SubmitBatchResponse{}
	if err := c.postJSON(ctx, "/api/v1/batches", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	out := &domain.Job{}
	if err := c.getJSON(ctx, "/api/v1/jobs/"+id.String(), out); err != nil {
		if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetBatch(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	out := &domain.BatchJob{}
	if err := c.getJSON(ctx, "/api/v1/batches/"+id.String(), out); err != nil {
		if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return out, nil
}

// Upload PUTs the file body through a time-limited upload handle. The handle
// is an absolute URL issued by the backend.
func (c *HTTPClient) Upload(ctx context.Context, handle string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, handle, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("client: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
