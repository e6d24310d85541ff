// Package request builds the line-delimited submission payload the
// Batch API expects: one JSON object per logical request, newline
// terminated. This tool always submits exactly one line per job.
package request

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EndpointResponses is the endpoint path every submission targets.
const EndpointResponses = "/v1/responses"

// Line is one submission object in the upload artifact.
type Line struct {
	CustomID string `json:"custom_id"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Body     Body   `json:"body"`
}

// Body is the Responses API request body carried by a Line.
type Body struct {
	Model           string     `json:"model"`
	Instructions    string     `json:"instructions"`
	Input           string     `json:"input"`
	MaxOutputTokens int        `json:"max_output_tokens"`
	Reasoning       *Reasoning `json:"reasoning,omitempty"`
	Tools           []Tool     `json:"tools,omitempty"`
}

type Reasoning struct {
	Effort string `json:"effort"`
}

type Tool struct {
	Type              string `json:"type"`
	SearchContextSize string `json:"search_context_size,omitempty"`
}

// Params are the submission parameters for a single job.
type Params struct {
	CustomID             string
	Prompt               string
	Instructions         string
	Model                string
	MaxOutputTokens      int
	ReasoningEffort      string
	WebSearch            bool
	WebSearchContextSize string
}

// NewLine builds the submission line for p. The reasoning effort is
// normalized and checked against the model's capability table; an
// effort the model does not support is downgraded or dropped.
func NewLine(p Params) Line {
	line := Line{
		CustomID: p.CustomID,
		Method:   "POST",
		URL:      EndpointResponses,
		Body: Body{
			Model:           p.Model,
			Instructions:    p.Instructions,
			Input:           p.Prompt,
			MaxOutputTokens: p.MaxOutputTokens,
		},
	}
	if effort, ok := EffortFor(p.Model, p.ReasoningEffort); ok {
		line.Body.Reasoning = &Reasoning{Effort: effort}
	}
	if p.WebSearch {
		line.Body.Tools = []Tool{{Type: "web_search", SearchContextSize: p.WebSearchContextSize}}
	}
	return line
}

// Encode serializes the line as a single JSON object followed by one
// trailing newline. The object itself must not contain raw newlines;
// encoding/json escapes them inside strings, so the only '\n' in the
// output is the terminator.
func (l Line) Encode() ([]byte, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encoding submission line: %w", err)
	}
	if bytes.ContainsRune(data, '\n') {
		return nil, fmt.Errorf("encoding submission line: embedded newline in %q", l.CustomID)
	}
	return append(data, '\n'), nil
}
