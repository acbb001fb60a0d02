package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPProvider calls a synchronous inference endpoint. The endpoint receives
// the input locator and prompt and responds with the output locator once the
// edited image has been written back to the blob store.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPProvider creates a provider backed by an HTTP inference endpoint.
func NewHTTPProvider(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type processRequest struct {
	JobID         string `json:"job_id"`
	InputLocation string `json:"input_location"`
	Prompt        string `json:"prompt"`
}

type processResponse struct {
	OutputLocation string `json:"output_location"`
	Error          string `json:"error,omitempty"`
}

func (p *HTTPProvider) Process(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(processRequest{
		JobID:         req.JobID.String(),
		InputLocation: req.InputLocation,
		Prompt:        req.Prompt,
	})
	if err != nil {
		return "", fmt.Errorf("provider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("provider: %w", err)
	}
	defer resp.Body.Close()

	// The endpoint has taken the input once it responds at all.
	if req.OnIntake != nil {
		req.OnIntake()
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("provider: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("Provider rejected job",
			zap.String("job_id", req.JobID.String()),
			zap.Int("status_code", resp.StatusCode),
		)
		return "", fmt.Errorf("provider: endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var out processResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("provider: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("provider: %s", out.Error)
	}
	if out.OutputLocation == "" {
		return "", fmt.Errorf("provider: endpoint returned no output location")
	}
	return out.OutputLocation, nil
}
