package auth

import (
	"log/slog"
	"net/http"
)

// RequireRole returns a chi-compatible middleware that rejects requests
// lacking a valid bearer token carrying the given role. Mount it only on the
// ruleset-admin route group (C2's create/update/delete routes); every other
// operation in the repo is unauthenticated.
func RequireRole(validator *Validator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r.Header.Get("Authorization"))
			user, err := validator.ValidateToken(token)
			if err != nil {
				slog.Warn("ruleset admin auth failed", "error", err, "path", r.URL.Path)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !user.HasRole(role) {
				slog.Warn("ruleset admin role denied", "subject", user.Subject, "role", role, "path", r.URL.Path)
				http.Error(w, "permission denied: "+role+" required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
