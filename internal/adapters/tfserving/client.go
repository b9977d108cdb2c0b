// Package tfserving provides adapters for models hosted behind a
// TensorFlow Serving REST endpoint. The glyph detector and the pitch
// classifier are two models on the same server.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8501"
	defaultTimeout = 30 * time.Second
	stateAvailable = "AVAILABLE"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type predictRequest struct {
	SignatureName string `json:"signature_name,omitempty"`
	Instances     any    `json:"instances"`
}

type predictResponse struct {
	Predictions json.RawMessage `json:"predictions"`
	Error       string          `json:"error,omitempty"`
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
		Status  struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	} `json:"model_version_status"`
	Error string `json:"error,omitempty"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// predict posts instances to model and decodes the predictions array into out.
func (c *Client) predict(ctx context.Context, model string, instances any, out any) error {
	body, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil && err != io.EOF {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != "" {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, parsed.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if parsed.Error != "" {
		return fmt.Errorf("%s", parsed.Error)
	}
	if len(parsed.Predictions) == 0 {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal(parsed.Predictions, out); err != nil {
		return fmt.Errorf("decode predictions: %w", err)
	}
	return nil
}

// ready succeeds when at least one version of model is AVAILABLE.
func (c *Client) ready(ctx context.Context, model string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models/"+model, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var status modelStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == stateAvailable {
			return nil
		}
	}
	return fmt.Errorf("model %s has no available version", model)
}
