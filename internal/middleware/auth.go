package middleware

import (
	"net/http"
	"strings"

	"github.com/paqtrack/paqtrack-be/internal/auth"
	"github.com/paqtrack/paqtrack-be/internal/http/respond"
)

// RequireAgent enforces the bearer scheme on agent-scoped routes: it extracts
// the token from the Authorization header, verifies it, and stores the
// resolved agent id on the request context. Requests with a missing or
// malformed header, or a token the manager rejects, end here with 401.
func RequireAgent(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respond.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			agentID, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := auth.WithAgentID(r.Context(), agentID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
