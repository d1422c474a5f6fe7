package middleware

import (
	"encoding/json"
	"net/http"
)

// NewMaxBodySizeHandler limits request bodies to limit bytes. A declared
// Content-Length over the limit is rejected with 413 before the next
// handler runs; otherwise the body is wrapped in http.MaxBytesReader so
// reading past the limit fails.
func NewMaxBodySizeHandler(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "request body too large",
					"code":  "payload_too_large",
				})
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
