package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/kalenz/oaibatch/internal/openai"
	"github.com/kalenz/oaibatch/internal/store"
)

// fakeClient is a test double for the wire client with per-call hooks
// and call counters.
type fakeClient struct {
	uploadFn   func(content []byte, purpose string) (string, error)
	createFn   func(inputFileID, endpoint string) (openai.BatchView, error)
	listFn     func(limit int) ([]openai.BatchView, error)
	retrieveFn func(id string) (openai.BatchView, error)
	contentFn  func(fileID string) (string, error)

	uploads   int
	downloads int
}

func (f *fakeClient) UploadFile(_ context.Context, content []byte, purpose string) (string, error) {
	f.uploads++
	return f.uploadFn(content, purpose)
}

func (f *fakeClient) CreateBatch(_ context.Context, inputFileID, endpoint string) (openai.BatchView, error) {
	return f.createFn(inputFileID, endpoint)
}

func (f *fakeClient) ListBatches(_ context.Context, limit int) ([]openai.BatchView, error) {
	return f.listFn(limit)
}

func (f *fakeClient) RetrieveBatch(_ context.Context, id string) (openai.BatchView, error) {
	return f.retrieveFn(id)
}

func (f *fakeClient) FileContent(_ context.Context, fileID string) (string, error) {
	f.downloads++
	return f.contentFn(fileID)
}

func newTestManager(t *testing.T, client *fakeClient) *Manager {
	t.Helper()
	return NewManager(client, store.Open(t.TempDir()))
}

func int64p(v int64) *int64 { return &v }

func TestLifecycle_EndToEnd(t *testing.T) {
	var uploaded []byte
	client := &fakeClient{
		uploadFn: func(content []byte, purpose string) (string, error) {
			if purpose != "batch" {
				t.Errorf("purpose = %q, want batch", purpose)
			}
			uploaded = content
			return "file-1", nil
		},
		createFn: func(inputFileID, endpoint string) (openai.BatchView, error) {
			if inputFileID != "file-1" {
				t.Errorf("inputFileID = %q", inputFileID)
			}
			if endpoint != "/v1/responses" {
				t.Errorf("endpoint = %q", endpoint)
			}
			return openai.BatchView{ID: "batch_1", Status: "validating"}, nil
		},
	}
	m := newTestManager(t, client)
	ctx := context.Background()

	// Submit with effort xhigh on a model that supports only up to
	// high: the encoded body must carry the downgraded effort.
	rec, err := m.Create(ctx, CreateParams{
		Prompt:          "ping",
		Instructions:    "You are a helpful assistant.",
		Model:           "o3-pro",
		MaxOutputTokens: 100000,
		ReasoningEffort: "xhigh",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.RemoteJobID != "batch_1" || rec.Status != "validating" {
		t.Errorf("record = %+v", rec)
	}
	if !strings.Contains(string(uploaded), `"reasoning":{"effort":"high"}`) {
		t.Errorf("uploaded payload = %s, want reasoning.effort high", uploaded)
	}
	var line struct {
		CustomID string `json:"custom_id"`
	}
	if err := json.Unmarshal(uploaded, &line); err != nil {
		t.Fatalf("uploaded payload is not one JSON object: %v", err)
	}
	if line.CustomID != rec.ID {
		t.Errorf("custom_id = %q, record id = %q", line.CustomID, rec.ID)
	}

	// Bulk refresh reporting completion updates status and output file
	// without touching the (absent) cached response.
	client.listFn = func(limit int) ([]openai.BatchView, error) {
		return []openai.BatchView{{
			ID:           "batch_1",
			Status:       "completed",
			OutputFileID: "f1",
			CompletedAt:  int64p(1756400000),
		}}, nil
	}
	if err := m.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	rec, err = m.Store().Get(rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != "completed" {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if rec.OutputFileID == nil || *rec.OutputFileID != "f1" {
		t.Errorf("OutputFileID = %v, want f1", rec.OutputFileID)
	}
	if rec.CachedResponseText != nil {
		t.Error("refresh must not populate the cached response")
	}

	// Targeted fetch downloads the output and caches the response.
	client.retrieveFn = func(id string) (openai.BatchView, error) {
		return openai.BatchView{ID: "batch_1", Status: "completed", OutputFileID: "f1"}, nil
	}
	client.contentFn = func(fileID string) (string, error) {
		return fmt.Sprintf(`{"custom_id":%q,"response":{"body":{"output_text":"pong","usage":{"input_tokens":3,"output_tokens":2}}}}`+"\n", rec.ID), nil
	}
	fetched, err := m.Fetch(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fetched.CachedResponseText == nil || *fetched.CachedResponseText != "pong" {
		t.Errorf("cached response = %v, want pong", fetched.CachedResponseText)
	}
	if fetched.Usage == nil || fetched.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v, want total 5", fetched.Usage)
	}
	if client.downloads != 1 {
		t.Fatalf("downloads = %d, want 1", client.downloads)
	}

	// A second fetch serves from cache: no further download.
	again, err := m.Fetch(ctx, rec.ID)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if again.CachedResponseText == nil || *again.CachedResponseText != "pong" {
		t.Errorf("cached response = %v", again.CachedResponseText)
	}
	if client.downloads != 1 {
		t.Errorf("downloads after cached fetch = %d, want still 1", client.downloads)
	}
}

func TestRefreshAll_Idempotent(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) { return "file-1", nil },
		createFn: func(string, string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "validating"}, nil
		},
		listFn: func(int) ([]openai.BatchView, error) {
			return []openai.BatchView{{
				ID:           "batch_1",
				Status:       "completed",
				OutputFileID: "f1",
				CompletedAt:  int64p(1756400000),
				InProgressAt: int64p(1756390000),
			}}, nil
		},
	}
	m := newTestManager(t, client)
	ctx := context.Background()

	rec, err := m.Create(ctx, CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.RefreshAll(ctx); err != nil {
		t.Fatalf("first RefreshAll: %v", err)
	}
	first, _ := m.Store().Get(rec.ID)

	if err := m.RefreshAll(ctx); err != nil {
		t.Fatalf("second RefreshAll: %v", err)
	}
	second, _ := m.Store().Get(rec.ID)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("reconciliation is not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestRefreshAll_UnmatchedRecordsUntouched(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) { return "file-1", nil },
		createFn: func(string, string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "in_progress"}, nil
		},
		listFn: func(int) ([]openai.BatchView, error) {
			// Paginated listing that does not include batch_1.
			return []openai.BatchView{{ID: "batch_other", Status: "completed"}}, nil
		},
	}
	m := newTestManager(t, client)
	ctx := context.Background()

	rec, err := m.Create(ctx, CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	got, _ := m.Store().Get(rec.ID)
	if got.Status != "in_progress" {
		t.Errorf("status = %q, unmatched record must be untouched", got.Status)
	}
}

func TestRefreshAll_UnknownStatusDefaultsToPending(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) { return "file-1", nil },
		createFn: func(string, string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "validating"}, nil
		},
		listFn: func(int) ([]openai.BatchView, error) {
			return []openai.BatchView{{ID: "batch_1", Status: "some_new_state"}}, nil
		},
	}
	m := newTestManager(t, client)
	ctx := context.Background()

	rec, _ := m.Create(ctx, CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10})
	if err := m.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	got, _ := m.Store().Get(rec.ID)
	if got.Status != "pending" {
		t.Errorf("status = %q, unknown remote status must map to pending", got.Status)
	}
}

func TestFetch_NotCompleted(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) { return "file-1", nil },
		createFn: func(string, string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "validating"}, nil
		},
		retrieveFn: func(string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "in_progress"}, nil
		},
	}
	m := newTestManager(t, client)
	ctx := context.Background()

	rec, _ := m.Create(ctx, CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10})
	_, err := m.Fetch(ctx, rec.ID)

	var notDone *NotCompletedError
	if !errors.As(err, &notDone) {
		t.Fatalf("err = %v, want *NotCompletedError", err)
	}
	if notDone.Status != StatusInProgress {
		t.Errorf("status in error = %q, want in_progress", notDone.Status)
	}
}

func TestFetch_NoOutputFile(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) { return "file-1", nil },
		createFn: func(string, string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "validating"}, nil
		},
		retrieveFn: func(string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "completed"}, nil
		},
	}
	m := newTestManager(t, client)
	ctx := context.Background()

	rec, _ := m.Create(ctx, CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10})
	if _, err := m.Fetch(ctx, rec.ID); !errors.Is(err, ErrNoOutputFile) {
		t.Errorf("err = %v, want ErrNoOutputFile", err)
	}
}

func TestFetch_ByRemoteJobID(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) { return "file-1", nil },
		createFn: func(string, string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "in_progress"}, nil
		},
		retrieveFn: func(id string) (openai.BatchView, error) {
			if id != "batch_1" {
				t.Errorf("retrieve id = %q", id)
			}
			return openai.BatchView{ID: "batch_1", Status: "in_progress"}, nil
		},
	}
	m := newTestManager(t, client)
	ctx := context.Background()

	if _, err := m.Create(ctx, CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := m.Fetch(ctx, "batch_1")
	var notDone *NotCompletedError
	if !errors.As(err, &notDone) {
		t.Errorf("fetch by remote id = %v, want *NotCompletedError", err)
	}
}

func TestFetch_UnknownRecord(t *testing.T) {
	m := newTestManager(t, &fakeClient{})
	if _, err := m.Fetch(context.Background(), "req-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) { return "file-1", nil },
		createFn: func(string, string) (openai.BatchView, error) {
			return openai.BatchView{ID: "batch_1", Status: "validating"}, nil
		},
	}
	m := newTestManager(t, client)
	rec, _ := m.Create(context.Background(), CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10})

	if err := m.Delete(rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Store().Get(rec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("record still present: %v", err)
	}
}

func TestCreate_UploadFailureLeavesNoRecord(t *testing.T) {
	client := &fakeClient{
		uploadFn: func([]byte, string) (string, error) {
			return "", &openai.APIError{StatusCode: 500, Message: "HTTP 500"}
		},
	}
	m := newTestManager(t, client)

	_, err := m.Create(context.Background(), CreateParams{Prompt: "p", Model: "gpt-5.2", MaxOutputTokens: 10})
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if got := len(m.Store().List()); got != 0 {
		t.Errorf("failed create persisted %d records, want 0", got)
	}
}
