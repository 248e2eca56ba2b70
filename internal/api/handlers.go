// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/auth"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
)

// uploadChunkLimit bounds one upload request body.
const uploadChunkLimit = 32 << 20

// loginRequest is the POST /login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin verifies credentials and sets the session cookie. Every
// failure mode gets the same message and status.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnauthorized, "Incorrect login or password")
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, "Incorrect login or password")
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogout ends the session, if any, and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.auth.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLanding answers GET /dashboard: the device list, through the zero
// device's status group.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.statusDispatch(w, r, "")
}

// handleDeviceStatus answers GET /dashboard/{device}: that device's
// summary, still through the zero device so one group gates all summaries.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	s.statusDispatch(w, r, chi.URLParam(r, "device"))
}

func (s *Server) statusDispatch(w http.ResponseWriter, r *http.Request, target string) {
	user := sessionUser(r.Context())
	env := &command.Envelope{
		Verb:     command.VerbStatus,
		Group:    device.GroupStatus,
		Username: user,
		Command:  "status",
		Payload:  target,
	}
	res, err := s.dispatcher.Dispatch(r.Context(), user, device.Zero, env)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeRaw(w, res)
}

// handleCommand answers POST /dashboard/{device}: the body is a command
// envelope, dispatched as-is.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var env command.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "malformed envelope")
		return
	}

	res, err := s.dispatcher.Dispatch(r.Context(), sessionUser(r.Context()), chi.URLParam(r, "device"), &env)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeRaw(w, res)
}

// handleReload swaps in a fresh group->device table. Root write access
// required.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r.Context())
	if err := s.engine.RequireGroup(r.Context(), user, device.GroupRootWrite); err != nil {
		writeDispatchError(w, err)
		return
	}
	s.cache.ReloadDeviceMap()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// handleDownload streams a file out of the share. Filer write access
// required: transfers are an editor feature, not a viewer one.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r.Context())
	if err := s.engine.RequireGroup(r.Context(), user, device.GroupFilerWrite); err != nil {
		writeDispatchError(w, err)
		return
	}

	f, err := s.filer.Open(chi.URLParam(r, "*"))
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		// Headers are gone; nothing to do but note it.
		return
	}
}

// handleUpload appends the request body to the caller's upload buffer for
// the target path, committing to disk unless ?buffered=1 asks for more
// chunks.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r.Context())
	if err := s.engine.RequireGroup(r.Context(), user, device.GroupFilerWrite); err != nil {
		writeDispatchError(w, err)
		return
	}

	path := chi.URLParam(r, "*")
	chunk, err := io.ReadAll(io.LimitReader(r.Body, uploadChunkLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	if err := s.filer.Append(user, path, chunk); err != nil {
		writeDispatchError(w, err)
		return
	}

	if r.URL.Query().Get("buffered") == "1" {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "buffered"})
		return
	}
	if err := s.filer.Commit(user, path); err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}
