// ABOUTME: HTTP middleware for bearer token authentication on API endpoints
// ABOUTME: Accepts Authorization header or token query param for WebSocket handshakes

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/campus-chat/internal/store"
)

// UserStore is what the middleware needs from storage
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// extractToken pulls a bearer token from the Authorization header, falling
// back to the token query parameter. Browsers cannot set headers on a
// WebSocket handshake, so the query param keeps the WS endpoints reachable.
// Returns the token and an error message (empty if successful).
func extractToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", "invalid authorization header format"
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return "", "empty token"
		}
		return token, ""
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, ""
	}
	return "", "missing credentials"
}

// Middleware creates an HTTP middleware that verifies bearer tokens, loads
// the user, and attaches it to the request context. Requests without a
// verified identity are refused before the handler runs.
func Middleware(users UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractToken(r)
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				writeUnauthorized(w, "unknown user")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
