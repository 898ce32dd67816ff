package api

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader carries the authenticated user id, set by the auth gateway in
// front of the backend.
const UserIDHeader = "X-User-ID"

type contextKey struct{}

// RequireUser rejects requests without a user id and stores it in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			writeError(w, "missing user identity", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, userID)))
	})
}

// UserID returns the user id stored by RequireUser.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(contextKey{}).(string)
	return userID
}
