// Package auth resolves the current user of a request. Identity is opaque:
// whatever the upstream proxy puts in the configured header.
package auth

import (
	"context"
	"net/http"
	"strings"
)

type userContextKey struct{}

var ctxUserKey userContextKey

// User is the person driving a wizard.
type User struct {
	Name string
}

// WithUser stores u on ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

// UserFromContext reads the user stored by WithUser.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxUserKey).(User)
	if !ok || u.Name == "" {
		return User{}, false
	}
	return u, true
}

// Middleware reads the user from header and rejects requests without one.
func Middleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := strings.TrimSpace(r.Header.Get(header))
			if name == "" {
				http.Error(w, "missing user", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), User{Name: name})))
		})
	}
}
