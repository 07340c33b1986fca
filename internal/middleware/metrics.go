package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// RequestRecorder receives per-request HTTP metrics
type RequestRecorder interface {
	RecordRequest(method, path, status string, duration time.Duration)
}

// Metrics returns a middleware that records request counts and latencies by
// route pattern, so path parameters do not blow up label cardinality.
func Metrics(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			recorder.RecordRequest(r.Method, routePattern(r), strconv.Itoa(wrapped.status), time.Since(start))
		})
	}
}
