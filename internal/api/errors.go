package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"lightrig/internal/catalog"
	"lightrig/internal/preset"
	"lightrig/internal/show"
)

// Error is the body of every failed request.
type Error struct {
	OK      bool   `json:"ok"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // the client may be gone
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeErr maps an operation error onto a status code.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preset.ErrSceneNotFound),
		errors.Is(err, preset.ErrPresetNotFound),
		errors.Is(err, preset.ErrBandPresetNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, show.ErrUnknownCommand),
		errors.Is(err, show.ErrUnknownControl),
		errors.Is(err, show.ErrUnknownPreset),
		errors.Is(err, show.ErrUnknownTarget),
		errors.Is(err, show.ErrInvalidMode),
		errors.Is(err, show.ErrInvalidColor),
		errors.Is(err, show.ErrMissingName),
		errors.Is(err, preset.ErrUnknownTarget),
		errors.Is(err, preset.ErrEmptyName),
		errors.Is(err, catalog.ErrInvalidValues):
		writeBadRequest(w, err.Error())
	case errors.Is(err, show.ErrNoScript):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
