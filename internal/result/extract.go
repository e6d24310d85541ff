// Package result parses the newline-delimited output artifact a
// completed batch job produces and pulls out one job's generated text
// and token usage.
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrResponseNotFound is returned when the output artifact contains no
// line matching the requested custom_id.
var ErrResponseNotFound = errors.New("no matching response in output file")

// Source identifies which extraction branch produced the text.
type Source int

const (
	// SourceStructured means the text came from a recognized result
	// shape (output message array or output_text string).
	SourceStructured Source = iota
	// SourceRawJSON means no recognized shape was found and the text is
	// the pretty-printed response body, kept so nothing is dropped.
	SourceRawJSON
)

// Usage is the token accounting reported alongside a result.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Result is one job's extracted output.
type Result struct {
	Text   string
	Source Source
	Usage  *Usage
}

type outputLine struct {
	CustomID string `json:"custom_id"`
	Response struct {
		Body json.RawMessage `json:"body"`
	} `json:"response"`
}

type responseBody struct {
	Output     []outputItem    `json:"output"`
	OutputText json.RawMessage `json:"output_text"`
	Usage      *usagePayload   `json:"usage"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usagePayload struct {
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  *int64 `json:"total_tokens"`
}

// Extract scans the artifact line by line, skipping blanks, and
// extracts the result for the first line whose custom_id matches.
func Extract(content, customID string) (Result, error) {
	for _, raw := range strings.Split(content, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var line outputLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return Result{}, fmt.Errorf("parsing output line: %w", err)
		}
		if line.CustomID != customID {
			continue
		}
		return extractBody(line.Response.Body)
	}
	return Result{}, ErrResponseNotFound
}

func extractBody(body json.RawMessage) (Result, error) {
	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("parsing response body: %w", err)
	}

	res := Result{Usage: parsed.Usage.normalize()}

	// Preferred shape: output array -> message item -> output_text entry.
	for _, item := range parsed.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				res.Text = c.Text
				res.Source = SourceStructured
				return res, nil
			}
		}
	}

	// Older shape: a bare output_text string on the body.
	if len(parsed.OutputText) > 0 {
		var s string
		if err := json.Unmarshal(parsed.OutputText, &s); err == nil {
			res.Text = s
			res.Source = SourceStructured
			return res, nil
		}
	}

	// Unknown shape: keep the whole body as pretty-printed JSON.
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return Result{}, fmt.Errorf("formatting response body: %w", err)
	}
	res.Text = buf.String()
	res.Source = SourceRawJSON
	return res, nil
}

func (u *usagePayload) normalize() *Usage {
	if u == nil {
		return nil
	}
	total := u.InputTokens + u.OutputTokens
	if u.TotalTokens != nil {
		total = *u.TotalTokens
	}
	return &Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  total,
	}
}
