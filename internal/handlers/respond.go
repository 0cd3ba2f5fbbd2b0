// Package handlers exposes the availability engine and its admin surfaces
// over HTTP. Responses use a uniform envelope: success plus payload, or
// success=false plus a stable error code and message.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/internal/storage"
)

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeEngineError maps the engine's stable error codes onto HTTP statuses.
// Unknown errors stay opaque 500s; their detail goes to the log, not the
// client.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var engineErr *availability.Error
	if errors.As(err, &engineErr) {
		status := http.StatusInternalServerError
		switch engineErr.Code {
		case availability.CodeValidation:
			status = http.StatusBadRequest
		case availability.CodeServiceNotFound:
			status = http.StatusNotFound
		case availability.CodeSlotTaken:
			status = http.StatusConflict
		case availability.CodeUnavailable:
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorBody{
			Error:   engineErr.Code,
			Message: engineErr.Message,
			Details: engineErr.Meta,
		})
		return
	}
	logger.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

// writeStorageError maps the storage sentinels the write paths return.
func writeStorageError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, storage.ErrCapacityExceeded), errors.Is(err, storage.ErrSlotClosed):
		writeError(w, http.StatusConflict, availability.CodeSlotTaken, "this slot was just taken")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, storage.ErrInvalidState):
		writeError(w, http.StatusConflict, "INVALID_STATE", "resource is not in a state that allows this operation")
	default:
		logger.Error("storage operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
