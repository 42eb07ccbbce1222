package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or shadow the viewer ID.
type contextKey string

const viewerIDKey contextKey = "viewerID"

// CookieName is the HttpOnly cookie the web client stores its token in.
const CookieName = "token"

var errNoToken = errors.New("auth: no token presented")

// RequireAuth enforces authentication on protected routes.
//
// The token is read from "Authorization: Bearer <jwt>" first and from the
// token cookie second. On success the viewer ID is stored in the request
// context; otherwise the request stops with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewerID, err := extractViewerID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewerID(r.Context(), viewerID)))
		})
	}
}

// WithViewerID returns a copy of ctx carrying the authenticated viewer ID.
// Handler tests use it to skip token handling.
func WithViewerID(ctx context.Context, viewerID int64) context.Context {
	return context.WithValue(ctx, viewerIDKey, viewerID)
}

// ViewerIDFromContext retrieves the authenticated viewer ID.
// Returns (0, false) when the request is anonymous.
func ViewerIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(viewerIDKey).(int64)
	return id, ok && id > 0
}

func extractViewerID(r *http.Request, tokens *TokenService) (int64, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			return 0, errNoToken
		}
		return tokens.Validate(strings.TrimSpace(raw))
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return 0, errNoToken
	}
	return tokens.Validate(cookie.Value)
}
