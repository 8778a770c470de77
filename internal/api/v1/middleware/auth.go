package middleware

import (
	"context"
	"net/http"

	"github.com/marginote/marginote/internal/services/session"
	"github.com/marginote/marginote/pkg/httpext"
)

type contextKey string

const sessionValidationKey contextKey = "sessionValidation"

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(sessions *session.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := session.ExtractToken(r)
			if tokenString == "" {
				httpext.JsonError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			validation := sessions.Validate(tokenString)
			if !validation.Valid {
				httpext.JsonError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionValidationKey, &validation)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetValidation retrieves the token validation result from the request context.
func GetValidation(r *http.Request) *session.ValidationResult {
	if validation, ok := r.Context().Value(sessionValidationKey).(*session.ValidationResult); ok {
		return validation
	}
	return nil
}
