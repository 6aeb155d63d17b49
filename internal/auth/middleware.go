package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "email", e), ANY package that knows the string "email"
// can read or shadow your value. Using a package-private type prevents collisions.
type contextKey string

const emailKey contextKey = "email"

// TokenValidator resolves a bearer token to the email it was issued to, or
// "" when the token is not acceptable. service.AuthService implements it.
type TokenValidator interface {
	ValidateToken(token string) string
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <jwt>", validates the token, and stores
// the subject (the member's email) in the request context. If the header is
// missing or the token does not verify, it returns 401 Unauthorized and
// stops the request chain.
//
// The middleware only establishes identity. It never looks the member up:
// handlers pass the email to the services, which decide what an unknown
// email means for their operation.
func RequireAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := tokens.ValidateToken(bearerToken(r))
			if email == "" {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="checkfit"`)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
		})
	}
}

// WithEmail returns a copy of ctx carrying the authenticated email.
// RequireAuth uses it; handler tests use it to fake a logged-in member.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

// EmailFromContext retrieves the authenticated member's email.
//
// Returns ("", false) if the request is anonymous.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively. Returns "" when absent.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
