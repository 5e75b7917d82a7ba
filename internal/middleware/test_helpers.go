package middleware

import (
	"context"
	"net/http"

	"github.com/DrorShokoPeer/ttydx/internal/auth"
)

// WithSessionForTest attaches a session to the request context for testing.
func WithSessionForTest(r *http.Request, sess *auth.AuthSession) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
}
