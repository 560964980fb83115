// Package identity adapts the external identity provider boundary: each
// request either carries an upstream-verified username or is anonymous.
// No authentication happens here.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/blrlabs/codelab/internal/store"
)

const (
	// UsernameHeader carries the verified username set by the upstream
	// auth proxy. Absent header means an anonymous request.
	UsernameHeader = "X-Codelab-User"
	// SessionHeader carries the client-generated opaque session key that
	// scopes event delivery to one browser tab. WebSocket clients cannot
	// set headers, so the session_id query parameter is the fallback.
	SessionHeader = "X-Codelab-Session"
)

type contextKey int

const (
	usernameKey contextKey = iota
	sessionKeyKey
)

var (
	// Usernames are opaque but bounded to keep them safe as primary keys.
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,128}$`)
	// Session keys are client-generated; bound them the same way.
	sessionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// UsernameFromContext extracts the verified username from the request
// context. Empty string means anonymous.
func UsernameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey).(string); ok {
		return v
	}
	return ""
}

// WithUsername returns a context carrying the username. Exposed for tests.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// SessionKeyFromContext extracts the client session key from the request
// context. Empty string means the client supplied none.
func SessionKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKeyKey).(string); ok {
		return v
	}
	return ""
}

// WithSessionKey returns a context carrying the session key. Exposed for
// tests.
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return context.WithValue(ctx, sessionKeyKey, sessionKey)
}

func sanitizeUsername(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !usernamePattern.MatchString(raw) {
		return ""
	}
	return raw
}

func sanitizeSessionKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !sessionKeyPattern.MatchString(raw) {
		return ""
	}
	return raw
}

func sessionKeyFromRequest(r *http.Request) string {
	key := r.Header.Get(SessionHeader)
	if key == "" {
		key = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionKey(key)
}

// ensureUser lazily creates the user's progress record on first sight.
// Read-first so the common case (user already known) stays off the write
// path.
func ensureUser(ctx context.Context, repo store.Repository, username string) error {
	p, err := repo.GetProgress(ctx, username)
	if err != nil {
		return err
	}
	if p != nil {
		return nil
	}
	return repo.EnsureUser(ctx, username)
}

// Middleware reads the verified username and client session key into the
// request context. Anonymous requests pass through untouched; they simply
// never persist progress.
func Middleware(repo store.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if sessionKey := sessionKeyFromRequest(r); sessionKey != "" {
				ctx = WithSessionKey(ctx, sessionKey)
			}

			username := sanitizeUsername(r.Header.Get(UsernameHeader))
			if username == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if err := ensureUser(ctx, repo, username); err != nil {
				http.Error(w, `{"error":"failed to initialize user"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(ctx, username)))
		})
	}
}
