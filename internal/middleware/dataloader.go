package middleware

import (
	"net/http"

	"github.com/rpattn/advfilters/internal/repository"
	"github.com/rpattn/advfilters/internal/shareloader"
)

// DataLoaderMiddleware attaches a fresh share loader to each request so
// listings batch their share lookups and never reuse another request's cache.
func DataLoaderMiddleware(repo repository.FilterSpecRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := shareloader.NewShareLoader(repo)
			ctx := shareloader.ContextWithLoader(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
