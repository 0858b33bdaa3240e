package models

import "fmt"

// Criterion categories for metadata evaluation.
const (
	CategoryDescriptive    = "descriptive"
	CategoryAdministrative = "administrative"
	CategoryGeotemporal    = "geotemporal"
)

// Suggestion priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// CriterionScore is one scored evaluation criterion.
type CriterionScore struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Weight   float64  `json:"weight"`
	Category string   `json:"category"`
	Issues   []string `json:"issues"`
}

// Suggestion is one improvement recommendation from the evaluator.
type Suggestion struct {
	Priority string `json:"priority"`
	Text     string `json:"text"`
}

// MetadataEvaluation is the structured output of the LLM evaluator.
// Responses are strictly validated before being surfaced; a failing
// evaluation never mutates versions.
type MetadataEvaluation struct {
	OverallScore float64          `json:"overall_score"`
	Criteria     []CriterionScore `json:"criteria"`
	Suggestions  []Suggestion     `json:"suggestions"`
}

// Validate enforces the evaluator response schema.
func (e *MetadataEvaluation) Validate() error {
	if e.OverallScore < 0 || e.OverallScore > 100 {
		return &LLMValidationError{Reason: fmt.Sprintf("overall_score %v out of [0,100]", e.OverallScore)}
	}
	for _, c := range e.Criteria {
		if c.Score < 0 || c.Score > 100 {
			return &LLMValidationError{Reason: fmt.Sprintf("criterion %q score %v out of [0,100]", c.Name, c.Score)}
		}
		if c.Weight < 0 || c.Weight > 1 {
			return &LLMValidationError{Reason: fmt.Sprintf("criterion %q weight %v out of [0,1]", c.Name, c.Weight)}
		}
		switch c.Category {
		case CategoryDescriptive, CategoryAdministrative, CategoryGeotemporal:
		default:
			return &LLMValidationError{Reason: fmt.Sprintf("criterion %q has unknown category %q", c.Name, c.Category)}
		}
	}
	for i, s := range e.Suggestions {
		switch s.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow:
		default:
			return &LLMValidationError{Reason: fmt.Sprintf("suggestion %d has unknown priority %q", i, s.Priority)}
		}
	}
	return nil
}
