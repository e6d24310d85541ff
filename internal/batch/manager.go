// Package batch is the job lifecycle manager: it builds and submits
// batch jobs, reconciles local records against remote status, and
// downloads and caches completed responses. All transitions are driven
// by remote status; nothing here infers state locally.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kalenz/oaibatch/internal/openai"
	"github.com/kalenz/oaibatch/internal/request"
	"github.com/kalenz/oaibatch/internal/result"
	"github.com/kalenz/oaibatch/internal/store"
)

// ErrMissingJobID is returned when fetching a record that never got a
// remote job id. Such records indicate an interrupted create and are
// not expected to be persisted.
var ErrMissingJobID = errors.New("record has no remote job id")

// ErrNoOutputFile is returned when a job completed but the service
// reported no output artifact.
var ErrNoOutputFile = errors.New("completed batch has no output file")

// NotCompletedError is returned when a response is requested before the
// job reaches terminal success.
type NotCompletedError struct {
	Status Status
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("batch not completed (status: %s)", e.Status)
}

// RemoteClient is the wire-protocol surface the manager drives.
type RemoteClient interface {
	UploadFile(ctx context.Context, content []byte, purpose string) (string, error)
	CreateBatch(ctx context.Context, inputFileID, endpoint string) (openai.BatchView, error)
	ListBatches(ctx context.Context, limit int) ([]openai.BatchView, error)
	RetrieveBatch(ctx context.Context, id string) (openai.BatchView, error)
	FileContent(ctx context.Context, fileID string) (string, error)
}

// listLimit is how many remote jobs a bulk refresh asks for. Records
// whose jobs fall outside the listing window are left untouched.
const listLimit = 100

// Manager owns the create / refresh / fetch flows over a local store
// and a remote client.
type Manager struct {
	client RemoteClient
	store  *store.Store

	// Concurrent bulk refreshes (e.g. repeated refresh clicks in a UI)
	// collapse into one remote listing.
	refreshGroup singleflight.Group
}

// NewManager creates a Manager over the given collaborators.
func NewManager(client RemoteClient, st *store.Store) *Manager {
	return &Manager{client: client, store: st}
}

// Store exposes the underlying record store for read-only presentation.
func (m *Manager) Store() *store.Store {
	return m.store
}

// CreateParams are the user-supplied submission parameters.
type CreateParams struct {
	Prompt               string
	Instructions         string
	Model                string
	MaxOutputTokens      int
	ReasoningEffort      string
	WebSearch            bool
	WebSearchContextSize string
}

// Create encodes the submission, uploads it, creates the remote job,
// and appends a new record. The record is only persisted after the
// remote job exists, so a persisted record always has a remote id.
func (m *Manager) Create(ctx context.Context, p CreateParams) (store.Record, error) {
	customID := "req-" + uuid.NewString()[:8]

	line := request.NewLine(request.Params{
		CustomID:             customID,
		Prompt:               p.Prompt,
		Instructions:         p.Instructions,
		Model:                p.Model,
		MaxOutputTokens:      p.MaxOutputTokens,
		ReasoningEffort:      p.ReasoningEffort,
		WebSearch:            p.WebSearch,
		WebSearchContextSize: p.WebSearchContextSize,
	})
	payload, err := line.Encode()
	if err != nil {
		return store.Record{}, err
	}

	fileID, err := m.client.UploadFile(ctx, payload, "batch")
	if err != nil {
		return store.Record{}, fmt.Errorf("uploading batch file: %w", err)
	}

	view, err := m.client.CreateBatch(ctx, fileID, request.EndpointResponses)
	if err != nil {
		return store.Record{}, fmt.Errorf("creating batch: %w", err)
	}

	rec := store.Record{
		ID:               customID,
		RemoteJobID:      view.ID,
		InputFileID:      fileID,
		Prompt:           p.Prompt,
		Instructions:     p.Instructions,
		Model:            p.Model,
		MaxOutputTokens:  p.MaxOutputTokens,
		WebSearchEnabled: p.WebSearch,
		Status:           string(ParseStatus(view.Status)),
		CreatedAt:        time.Now().UTC(),
	}
	if line.Body.Reasoning != nil {
		effort := line.Body.Reasoning.Effort
		rec.ReasoningEffort = &effort
	}
	if p.WebSearch && p.WebSearchContextSize != "" {
		size := p.WebSearchContextSize
		rec.WebSearchContextSize = &size
	}
	applyView(&rec, view)

	m.store.Append(rec)
	return rec, nil
}

// RefreshAll lists remote jobs once and merges their status into every
// matching local record. Records with no match in the listing are left
// untouched.
func (m *Manager) RefreshAll(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.refreshAll(ctx)
	})
	return err
}

func (m *Manager) refreshAll(ctx context.Context) error {
	views, err := m.client.ListBatches(ctx, listLimit)
	if err != nil {
		return fmt.Errorf("listing batches: %w", err)
	}

	byRemoteID := make(map[string]openai.BatchView, len(views))
	for _, v := range views {
		byRemoteID[v.ID] = v
	}

	m.store.UpdateEach(func(r *store.Record) {
		if r.RemoteJobID == "" {
			return
		}
		if v, ok := byRemoteID[r.RemoteJobID]; ok {
			applyView(r, v)
		}
	})
	return nil
}

// Fetch retrieves one record's remote status and, when the job has
// newly completed, downloads and parses its response. A previously
// cached response is authoritative and is returned without any network
// download. id may be a local record id or a remote job id.
func (m *Manager) Fetch(ctx context.Context, id string) (store.Record, error) {
	rec, err := m.lookup(id)
	if err != nil {
		return store.Record{}, err
	}
	if rec.RemoteJobID == "" {
		return store.Record{}, ErrMissingJobID
	}

	view, err := m.client.RetrieveBatch(ctx, rec.RemoteJobID)
	if err != nil {
		return store.Record{}, fmt.Errorf("retrieving batch %s: %w", rec.RemoteJobID, err)
	}
	rec, err = m.store.Update(rec.ID, func(r *store.Record) {
		applyView(r, view)
	})
	if err != nil {
		return store.Record{}, err
	}

	if rec.CachedResponseText != nil {
		return rec, nil
	}

	status := Status(rec.Status)
	if status != StatusCompleted {
		return store.Record{}, &NotCompletedError{Status: status}
	}
	if rec.OutputFileID == nil || *rec.OutputFileID == "" {
		return store.Record{}, ErrNoOutputFile
	}

	content, err := m.client.FileContent(ctx, *rec.OutputFileID)
	if err != nil {
		return store.Record{}, fmt.Errorf("downloading output file %s: %w", *rec.OutputFileID, err)
	}

	res, err := result.Extract(content, rec.ID)
	if err != nil {
		return store.Record{}, err
	}

	return m.store.Update(rec.ID, func(r *store.Record) {
		text := res.Text
		r.CachedResponseText = &text
		if res.Usage != nil {
			r.Usage = &store.Usage{
				InputTokens:  res.Usage.InputTokens,
				OutputTokens: res.Usage.OutputTokens,
				TotalTokens:  res.Usage.TotalTokens,
			}
		}
	})
}

// Delete removes a record. Removal is always user-initiated; the
// remote job, if still running, is not cancelled.
func (m *Manager) Delete(id string) error {
	rec, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.store.Delete(rec.ID)
}

func (m *Manager) lookup(id string) (store.Record, error) {
	if rec, err := m.store.Get(id); err == nil {
		return rec, nil
	}
	return m.store.GetByRemoteJobID(id)
}

// applyView is a pure overwrite of the remote-owned fields; applying
// the same view twice yields the same record. Timestamps and the
// output file id only move from absent to present.
func applyView(r *store.Record, v openai.BatchView) {
	r.Status = string(ParseStatus(v.Status))
	if v.OutputFileID != "" {
		id := v.OutputFileID
		r.OutputFileID = &id
	}
	if v.CompletedAt != nil {
		at := *v.CompletedAt
		r.CompletedAt = &at
	}
	if v.InProgressAt != nil {
		at := *v.InProgressAt
		r.StartedProcessingAt = &at
	}
}
