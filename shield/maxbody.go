package shield

import (
	"net/http"
	"strings"
)

// MaxJSONBody returns middleware that caps the request body at limit
// bytes for JSON requests. Reads past the limit fail and the handler's
// json decode surfaces the error, so oversized payloads never reach the
// debugger. Non-JSON bodies pass through untouched.
func MaxJSONBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ct := r.Header.Get("Content-Type")
			if strings.HasPrefix(ct, "application/json") {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
