package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/conductr/internal/shared"
)

type errorBody struct {
	Error string `json:"error"`
	Step  string `json:"step,omitempty"`
}

// StatusFor maps pipeline errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInputAmbiguous):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, shared.ErrUpstreamUnavailable), errors.Is(err, shared.ErrAssemblyStepFailed), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorFor(err error) errorBody {
	body := errorBody{Error: err.Error()}
	if errors.Is(err, shared.ErrSessionExpired) {
		body.Error = shared.ErrSessionExpired.Error()
	}
	if step, ok := shared.FailedStep(err); ok {
		body.Step = step
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorFor(err))
}
