// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("Response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeRaw passes a device result through untouched; device payloads are
// opaque to this layer.
func writeRaw(w http.ResponseWriter, res device.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res)
}

// writeDispatchError maps the dispatch taxonomy onto HTTP statuses.
// Authorization failures share one generic body so callers cannot tell
// which check failed.
func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, command.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "no access")
	case errors.Is(err, command.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, command.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, command.ErrDeviceError):
		writeError(w, http.StatusBadGateway, "device error")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
