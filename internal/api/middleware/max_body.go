package middleware

import (
	"net/http"

	"github.com/docsage/docsage/internal/api"
)

// MaxBodyBytes caps request body size at limit bytes. Requests that declare
// a larger Content-Length are rejected up front; streaming bodies are capped
// with http.MaxBytesReader so oversized reads fail inside the handler.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength != -1 && r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
