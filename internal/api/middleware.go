package api

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"tiergate/internal/metrics"
	authsvc "tiergate/internal/services/auth"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// statusRecorder captures the response code. It keeps Flush and Hijack
// working for the SSE and websocket routes.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.code == 0 {
		r.code = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records metrics and a debug log line per request under route
func instrument(route string, log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		code := rec.code
		if code == 0 {
			code = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(route, code, elapsed)
		log.Debugw("HTTP request", "route", route, "path", r.URL.Path, "code", code, "duration_ms", elapsed.Milliseconds())
	})
}

// recoverer turns handler panics into 500s
func recoverer(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Errorw("Handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and sets allow headers for allowed origins.
// "*" allows every origin.
func cors(allowed []string, next http.Handler) http.Handler {
	allowAll := slices.Contains(allowed, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(allowed, origin)) {
			h := w.Header()
			if allowAll {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type contextKey string

const callerContextKey contextKey = "caller_user_id"

// TokenValidator resolves a bearer token to the user id it was issued to
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

var _ TokenValidator = (*authsvc.Service)(nil)

// authenticate requires a valid bearer token and puts its subject into the
// request context. A {user} path segment must match the subject. Requests
// for which skip returns true pass untouched.
func authenticate(validator TokenValidator, skip func(*http.Request) bool, log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip != nil && skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		if validator == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authentication is not configured"})
			return
		}

		token, source := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}

		userID, err := validator.ValidateToken(token)
		if err != nil {
			log.Warnw("Invalid auth token", "source", source, "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}

		if pathUser := r.PathValue("user"); pathUser != "" && pathUser != userID {
			log.Warnw("Token used for another user", "caller", userID, "user", pathUser, "path", r.URL.Path)
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "token does not belong to this user"})
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reads the Authorization header, then the token query
// parameter. Browsers cannot set headers on a websocket handshake.
func bearerToken(r *http.Request) (token, source string) {
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), "bearer_header"
	}
	if v := r.URL.Query().Get("token"); v != "" {
		return v, "query"
	}
	return "", ""
}

// CallerFromContext returns the authenticated user id, if the request had one
func CallerFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(callerContextKey).(string)
	return userID, ok
}
