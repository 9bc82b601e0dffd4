package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/conductr/internal/shared"
	"github.com/desertthunder/conductr/internal/tasks"
)

const assemblyTimeout = 5 * time.Minute

// CallbackResult is the outcome of one authorization callback.
type CallbackResult struct {
	Job *tasks.AssemblyJob
	Err error
}

// CallbackHandler completes the authorization redirect: it consumes the handoff named by the
// state parameter and assembles the playlist with the returned code.
//
// The state parameter carries only the handoff handle. A handle can be used once.
type CallbackHandler struct {
	store     HandoffStore
	assembler Assembler
	results   chan CallbackResult
	logger    *log.Logger
}

// NewCallbackHandler creates a CallbackHandler.
func NewCallbackHandler(store HandoffStore, assembler Assembler, logger *log.Logger) *CallbackHandler {
	return &CallbackHandler{
		store:     store,
		assembler: assembler,
		results:   make(chan CallbackResult, 1),
		logger:    shared.ComponentLogger(logger, "callback"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"GET /callback"}
}

// Results delivers callback outcomes to a local listener such as the CLI.
// Outcomes are dropped when nobody is reading.
func (h *CallbackHandler) Results() <-chan CallbackResult {
	return h.results
}

func (h *CallbackHandler) send(result CallbackResult) {
	select {
	case h.results <- result:
	default:
	}
}

// ServeHTTP handles the authorization callback.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if code := query.Get("code"); code == "" {
		err := fmt.Errorf("%w: authorization denied: %s %s", shared.ErrAuthFailed, query.Get("error"), query.Get("error_description"))
		if state := query.Get("state"); state != "" {
			_, _ = h.store.Consume(r.Context(), state)
		}
		h.respond(w, r, nil, shared.StepFailed(tasks.TokenExchange.String(), err))
		return
	}

	payload, err := h.store.Consume(r.Context(), query.Get("state"))
	if err != nil {
		h.respond(w, r, nil, err)
		return
	}

	// Assembly outlives the request so a closed tab never leaves a half-filled playlist.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), assemblyTimeout)
	defer cancel()

	job, err := h.assembler.Assemble(ctx, query.Get("code"), payload, nil)
	h.respond(w, r, job, err)
}

func (h *CallbackHandler) respond(w http.ResponseWriter, r *http.Request, job *tasks.AssemblyJob, err error) {
	h.send(CallbackResult{Job: job, Err: err})

	status := http.StatusOK
	if err != nil {
		status = StatusFor(err)
		h.logger.Error("callback failed", "status", status, "error", err)
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		if err != nil {
			writeJSON(w, status, errorFor(err))
			return
		}
		writeJSON(w, status, job)
		return
	}

	view := callbackView{Job: job}
	if err != nil {
		view.Error = errorFor(err).Error
		if step, ok := shared.FailedStep(err); ok {
			view.Step = step
		}
		view.Expired = errors.Is(err, shared.ErrSessionExpired)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, view); err != nil {
		h.logger.Error("render callback page", "error", err)
	}
}

type callbackView struct {
	Job     *tasks.AssemblyJob
	Error   string
	Step    string
	Expired bool
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>conductr</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { margin: 0 0 1rem 0; }
        .ok { color: #1DB954; }
        .err { color: #d9534f; }
        p { color: #666; margin: 0.5rem 0; }
    </style>
</head>
<body>
    <div class="container">
    {{- if .Error }}
        <h1 class="err">✗ Playlist not created</h1>
        {{- if .Expired }}
        <p>Your session expired, please restart your search.</p>
        {{- else }}
        <p>{{ if .Step }}{{ .Step }}: {{ end }}{{ .Error }}</p>
        {{- end }}
    {{- else }}
        <h1 class="ok">✓ Playlist created</h1>
        <p>{{ len .Job.TrackIDs }} tracks added.</p>
        <p><a href="{{ .Job.PlaylistURL }}">{{ .Job.PlaylistURL }}</a></p>
        <p>You can close this window and return to the terminal.</p>
    {{- end }}
    </div>
</body>
</html>
`))
