// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/webdeck-io/webdeck/internal/logging"
)

type contextKey string

// userKey carries the authenticated username through the request context.
const userKey contextKey = "webdeck-user"

// sessionUser returns the authenticated username, empty when unauthenticated.
func sessionUser(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// requireSession resolves the session cookie to a username and stores it in
// the request context. Requests without a live session get 401 with no
// detail about why.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "no access")
			return
		}
		user, err := s.auth.Resolve(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "no access")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// requestLogger stamps a request id on the context and emits one
// structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.ContextWithRequestID(r.Context(), logging.NewRequestID())
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))
		logging.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
