package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/desertthunder/conductr/internal/tasks"
)

// Resolver turns free text into a canonical piece.
type Resolver interface {
	Resolve(ctx context.Context, raw, priorContext string) (models.CanonicalPiece, error)
}

// Ranker ranks catalog albums for a piece.
type Ranker interface {
	Rank(ctx context.Context, piece models.CanonicalPiece) (*ranking.Result, error)
}

// HandoffStore parks a selection across the authorization redirect.
type HandoffStore interface {
	Put(ctx context.Context, payload models.HandoffPayload) (string, error)
	Consume(ctx context.Context, handle string) (models.HandoffPayload, error)
}

// Assembler builds the playlist once the user has authorized.
type Assembler interface {
	Assemble(ctx context.Context, code string, payload models.HandoffPayload, progress chan<- tasks.ProgressUpdate) (*tasks.AssemblyJob, error)
}

// AuthURLer builds the consent URL for a handoff handle.
type AuthURLer interface {
	AuthURL(state string) string
}

// CanonicalizeRequest is the body of POST /api/canonicalize.
type CanonicalizeRequest struct {
	Input   string `json:"input"`
	Context string `json:"context,omitempty"`
}

// HandoffResponse is returned by POST /api/handoff.
type HandoffResponse struct {
	Handle  string `json:"handle"`
	AuthURL string `json:"authUrl"`
}

// APIHandler serves the search half of the pipeline as JSON endpoints.
type APIHandler struct {
	resolver Resolver
	ranker   Ranker
	store    HandoffStore
	auth     AuthURLer
	logger   *log.Logger
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(resolver Resolver, ranker Ranker, store HandoffStore, auth AuthURLer, logger *log.Logger) *APIHandler {
	return &APIHandler{
		resolver: resolver,
		ranker:   ranker,
		store:    store,
		auth:     auth,
		logger:   shared.ComponentLogger(logger, "api"),
	}
}

// Register adds the API routes to router.
func (h *APIHandler) Register(router *BasicRouter) {
	router.HandleFunc(http.MethodPost, "/api/canonicalize", h.canonicalize)
	router.HandleFunc(http.MethodPost, "/api/search", h.search)
	router.HandleFunc(http.MethodPost, "/api/handoff", h.handoff)
	router.HandleFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (h *APIHandler) canonicalize(w http.ResponseWriter, r *http.Request) {
	var req CanonicalizeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	piece, err := h.resolver.Resolve(r.Context(), req.Input, req.Context)
	if err != nil {
		h.logger.Warn("canonicalize failed", "input", req.Input, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, piece)
}

func (h *APIHandler) search(w http.ResponseWriter, r *http.Request) {
	var piece models.CanonicalPiece
	if err := decode(r, &piece); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.ranker.Rank(r.Context(), piece)
	if err != nil {
		h.logger.Error("search failed", "work", piece.Work, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) handoff(w http.ResponseWriter, r *http.Request) {
	var payload models.HandoffPayload
	if err := decode(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	handle, err := h.store.Put(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, HandoffResponse{Handle: handle, AuthURL: h.auth.AuthURL(handle)})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
