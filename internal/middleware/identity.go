package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/advfilters/internal/auth"
)

const (
	DefaultUserHeader     = "X-User"
	DefaultElevatedHeader = "X-User-Elevated"
)

// IdentityMiddleware reads the acting user from request headers set by the
// fronting proxy. Requests without a user pass through anonymous; handlers
// that need one reject them.
func IdentityMiddleware(userHeader, elevatedHeader string) func(http.Handler) http.Handler {
	if strings.TrimSpace(userHeader) == "" {
		userHeader = DefaultUserHeader
	}
	if strings.TrimSpace(elevatedHeader) == "" {
		elevatedHeader = DefaultElevatedHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get(userHeader))
			if user == "" {
				next.ServeHTTP(w, r)
				return
			}
			elevated, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(elevatedHeader)))
			ctx := auth.ContextWithActor(r.Context(), auth.Actor{ID: user, Elevated: elevated})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
