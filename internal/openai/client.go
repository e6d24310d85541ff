// Package openai is the wire-protocol layer for the asynchronous Batch
// API: file upload, batch creation and retrieval, and output download.
// There is no retry logic anywhere in this package; the service is
// known to occasionally double-execute work, and masking transport
// failures with automatic retries would hide that risk from callers.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	// headerTimeout bounds the wait for response headers; bodyTimeout
	// bounds the full round trip including the body (output artifacts
	// can be large).
	headerTimeout = 60 * time.Second
	bodyTimeout   = 300 * time.Second

	// completionWindow is the processing duration contracted at batch
	// creation. The API currently supports only 24h.
	completionWindow = "24h"
)

// Client talks to the Batch API over HTTPS with a bearer credential.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: headerTimeout,
			},
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL
// (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// UploadFile uploads content as a multipart form with the given purpose
// and returns the created file's id.
func (c *Client) UploadFile(ctx context.Context, content []byte, purpose string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", purpose); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="batch.jsonl"`)
	header.Set("Content-Type", "application/jsonl")
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	body, err := c.do(ctx, http.MethodPost, "/files", w.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}

	var file fileResponse
	if err := json.Unmarshal(body, &file); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if file.ID == "" {
		return "", fmt.Errorf("%w: upload response has no id", ErrInvalidResponse)
	}
	return file.ID, nil
}

// CreateBatch creates a remote batch job over the uploaded input file.
func (c *Client) CreateBatch(ctx context.Context, inputFileID, endpoint string) (BatchView, error) {
	reqBody, err := json.Marshal(createBatchRequest{
		InputFileID:      inputFileID,
		Endpoint:         endpoint,
		CompletionWindow: completionWindow,
	})
	if err != nil {
		return BatchView{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	body, err := c.do(ctx, http.MethodPost, "/batches", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return BatchView{}, err
	}

	var view BatchView
	if err := json.Unmarshal(body, &view); err != nil {
		return BatchView{}, fmt.Errorf("decoding batch response: %w", err)
	}
	if view.ID == "" {
		return BatchView{}, fmt.Errorf("%w: batch response has no id", ErrInvalidResponse)
	}
	return view, nil
}

// ListBatches returns up to limit batch jobs. Matching listed jobs to
// local records is the caller's concern.
func (c *Client) ListBatches(ctx context.Context, limit int) ([]BatchView, error) {
	path := "/batches?limit=" + strconv.Itoa(limit)
	body, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	var list batchListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding batch list: %w", err)
	}
	return list.Data, nil
}

// RetrieveBatch fetches the current state of one batch job.
func (c *Client) RetrieveBatch(ctx context.Context, id string) (BatchView, error) {
	body, err := c.do(ctx, http.MethodGet, "/batches/"+url.PathEscape(id), "", nil)
	if err != nil {
		return BatchView{}, err
	}

	var view BatchView
	if err := json.Unmarshal(body, &view); err != nil {
		return BatchView{}, fmt.Errorf("decoding batch response: %w", err)
	}
	return view, nil
}

// FileContent downloads the raw output artifact as UTF-8 text.
func (c *Client) FileContent(ctx context.Context, fileID string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", "", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, bodyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiMessage(respBody, resp.StatusCode),
		}
	}
	return respBody, nil
}
