package scorer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

// modelResult is the structured payload expected from the model.
type modelResult struct {
	Summary   string  `json:"summary"`
	Reasoning string  `json:"reasoning"`
	Impact    string  `json:"impact"`
	Score     float64 `json:"score"`
}

// parseModelOutput extracts and validates the JSON result from a model
// response. Models occasionally wrap JSON in code fences or surrounding
// prose, so the parser locates the outermost object before decoding.
func parseModelOutput(raw string) (*modelResult, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedOutput)
	}

	var result modelResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	if strings.TrimSpace(result.Summary) == "" {
		return nil, fmt.Errorf("%w: empty summary", domain.ErrMalformedOutput)
	}
	if result.Score < 0 || result.Score > 1 {
		return nil, fmt.Errorf("%w: score %.4f outside [0,1]", domain.ErrMalformedOutput, result.Score)
	}

	result.Impact = strings.ToLower(strings.TrimSpace(result.Impact))
	if !domain.ImpactType(result.Impact).IsValid() {
		return nil, fmt.Errorf("%w: unknown impact %q", domain.ErrMalformedOutput, result.Impact)
	}

	return &result, nil
}

// extractJSON returns the outermost {...} object in raw, or "".
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
