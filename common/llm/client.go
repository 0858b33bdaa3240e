package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
)

// Client evaluates metadata through an HTTP completion endpoint that
// returns the evaluation schema as JSON.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	log        *logger.Logger
}

// NewClient creates an evaluator client.
func NewClient(httpClient *http.Client, endpoint, apiKey string, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, endpoint: endpoint, apiKey: apiKey, log: log}
}

// EvaluateMetadata posts the request and validates the response schema.
// Transport failures come back as LLMTransportError, schema violations as
// LLMValidationError.
func (c *Client) EvaluateMetadata(ctx context.Context, req *Request) (*models.MetadataEvaluation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &models.LLMTransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &models.LLMTransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.LLMTransportError{Err: fmt.Errorf("evaluator returned %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.LLMTransportError{Err: err}
	}

	evaluation := &models.MetadataEvaluation{}
	if err := json.Unmarshal(raw, evaluation); err != nil {
		return nil, &models.LLMValidationError{Reason: fmt.Sprintf("malformed response: %v", err)}
	}
	if err := evaluation.Validate(); err != nil {
		return nil, err
	}

	c.log.Debug("metadata evaluated", "overall_score", evaluation.OverallScore)
	return evaluation, nil
}
