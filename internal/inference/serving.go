package inference

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

// ServingClient calls a model hosted behind a TensorFlow-Serving compatible
// REST API:
//
//	POST {baseURL}/v1/models/{name}:predict  {"instances": [[[v1], ...]]}
//	→ {"predictions": [[score]]}
type ServingClient struct {
	baseURL    string
	name       string
	httpClient *http.Client
}

// NewServingClient creates a ServingClient. A zero timeout defaults to 10s.
func NewServingClient(baseURL, name string, timeout time.Duration) *ServingClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ServingClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusURL is the model status endpoint, suitable for readiness probes.
func (c *ServingClient) StatusURL() string {
	return fmt.Sprintf("%s/v1/models/%s", c.baseURL, c.name)
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

// Predict implements Predictor.
func (c *ServingClient) Predict(ctx context.Context, in Tensor) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: in.Nested()})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	url := c.StatusURL() + ":predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read predict response: %w", err)
	}

	var out predictResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(raw, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("model server returned %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("model server returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}

	var scores []float64
	for _, p := range out.Predictions {
		scores = append(scores, p...)
	}
	return scores, nil
}
