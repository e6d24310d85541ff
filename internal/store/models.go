package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmptyCredential is returned when saving a blank API key.
var ErrEmptyCredential = errors.New("api key is empty")

// Usage is the persisted token accounting for a completed job.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Record is one submitted batch job. The submission parameters are
// immutable after creation; status, timestamps and the output file id
// are overwritten from remote state, and the cached response is set
// exactly once by the first successful download.
type Record struct {
	ID                   string     `json:"id"`
	RemoteJobID          string     `json:"remote_job_id"`
	InputFileID          string     `json:"input_file_id"`
	Prompt               string     `json:"prompt"`
	Instructions         string     `json:"instructions"`
	Model                string     `json:"model"`
	ReasoningEffort      *string    `json:"reasoning_effort"`
	MaxOutputTokens      int        `json:"max_output_tokens"`
	WebSearchEnabled     bool       `json:"web_search_enabled"`
	WebSearchContextSize *string    `json:"web_search_context_size"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	CompletedAt          *int64     `json:"completed_at"`
	StartedProcessingAt  *int64     `json:"started_processing_at"`
	OutputFileID         *string    `json:"output_file_id"`
	CachedResponseText   *string    `json:"cached_response_text"`
	Usage                *Usage     `json:"usage"`
}
