// Package llm defines the metadata quality evaluator boundary. Evaluator
// failures are surfaced to the caller but never mutate versions.
package llm

import (
	"context"

	"github.com/datapulse/catalog/common/models"
)

// Request carries one evaluation: the reconstructed dataset snapshot plus
// the reference documents guiding the evaluation.
type Request struct {
	Dataset       map[string]any `json:"dataset"`
	DCATReference string         `json:"dcat_reference"`
	Charter       string         `json:"charter"`
	Output        string         `json:"output"`
}

// Evaluator scores dataset metadata quality. Responses are strictly
// validated against the evaluation schema before being returned.
type Evaluator interface {
	EvaluateMetadata(ctx context.Context, req *Request) (*models.MetadataEvaluation, error)
}
