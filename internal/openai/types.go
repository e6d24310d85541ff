package openai

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEncoding is returned when a request body cannot be serialized.
var ErrEncoding = errors.New("encoding request body")

// ErrInvalidResponse is returned when a success payload is missing
// fields the protocol requires.
var ErrInvalidResponse = errors.New("invalid response payload")

// APIError is any non-2xx HTTP response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s", e.Message)
}

// BatchView is the transient remote state of one batch job. It is never
// persisted directly; the reconciler copies its fields into a record.
type BatchView struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	OutputFileID string `json:"output_file_id"`
	CompletedAt  *int64 `json:"completed_at"`
	InProgressAt *int64 `json:"in_progress_at"`
}

type fileResponse struct {
	ID string `json:"id"`
}

type batchListResponse struct {
	Data []BatchView `json:"data"`
}

type createBatchRequest struct {
	InputFileID      string `json:"input_file_id"`
	Endpoint         string `json:"endpoint"`
	CompletionWindow string `json:"completion_window"`
}

// apiMessage pulls error.message out of an error response body, falling
// back to a generic label when the body is not the documented shape.
func apiMessage(body []byte, statusCode int) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}
