// Package api exposes the batch lifecycle manager to presentation
// layers: an HTTP surface for the desktop UI and an MCP server for
// agent integrations. Neither computes status nor parses API output;
// both delegate to the manager.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalenz/oaibatch/internal/batch"
	"github.com/kalenz/oaibatch/internal/openai"
	"github.com/kalenz/oaibatch/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds the handler's collaborators.
type Deps struct {
	Manager *batch.Manager
}

// CreateRequest is the submission payload accepted over HTTP.
type CreateRequest struct {
	Prompt               string `json:"prompt"`
	Instructions         string `json:"instructions"`
	Model                string `json:"model"`
	MaxOutputTokens      int    `json:"max_output_tokens"`
	ReasoningEffort      string `json:"reasoning_effort"`
	WebSearch            bool   `json:"web_search"`
	WebSearchContextSize string `json:"web_search_context_size"`
}

// NewHandler returns the HTTP surface consumed by the GUI.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/batches", handleCreate(deps))
	r.Get("/batches", handleList(deps))
	r.Get("/batches/{id}", handleGet(deps))
	r.Delete("/batches/{id}", handleDelete(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleCreate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
			return
		}

		rec, err := deps.Manager.Create(r.Context(), batch.CreateParams{
			Prompt:               req.Prompt,
			Instructions:         req.Instructions,
			Model:                req.Model,
			MaxOutputTokens:      req.MaxOutputTokens,
			ReasoningEffort:      req.ReasoningEffort,
			WebSearch:            req.WebSearch,
			WebSearchContextSize: req.WebSearchContextSize,
		})
		if err != nil {
			writeManagerError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rec)
	}
}

func handleList(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") == "1" {
			if err := deps.Manager.RefreshAll(r.Context()); err != nil {
				writeManagerError(w, err)
				return
			}
		}
		records := deps.Manager.Store().List()
		if records == nil {
			records = []store.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

func handleGet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var rec store.Record
		var err error
		if r.URL.Query().Get("fetch") == "1" {
			rec, err = deps.Manager.Fetch(r.Context(), id)
		} else {
			rec, err = deps.Manager.Store().Get(id)
		}
		if err != nil {
			writeManagerError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rec)
	}
}

func handleDelete(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Manager.Delete(chi.URLParam(r, "id")); err != nil {
			writeManagerError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeManagerError maps core errors onto HTTP status codes with
// enough structure for the UI to render a specific message.
func writeManagerError(w http.ResponseWriter, err error) {
	var apiErr *openai.APIError
	var notDone *batch.NotCompletedError
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.As(err, &notDone):
		httpError(w, http.StatusConflict, "batch_not_completed", "%v", notDone)
	case errors.Is(err, batch.ErrMissingJobID), errors.Is(err, batch.ErrNoOutputFile):
		httpError(w, http.StatusConflict, "batch_state_error", "%v", err)
	case errors.As(err, &apiErr):
		httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", apiErr)
	default:
		httpError(w, http.StatusInternalServerError, "internal_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
