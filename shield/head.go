package shield

import "net/http"

// headWriter suppresses the body while keeping status and headers.
type headWriter struct {
	http.ResponseWriter
}

func (w headWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

// HeadToGet serves HEAD requests through the GET handlers. The request
// method is rewritten so routers with explicit method matching still
// dispatch, and the response body is discarded.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r2 := r.Clone(r.Context())
			r2.Method = http.MethodGet
			next.ServeHTTP(headWriter{w}, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}
