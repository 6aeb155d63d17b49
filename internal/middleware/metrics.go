package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestRecorder receives one call per finished request.
// *metrics.Collector implements it.
type RequestRecorder interface {
	RecordRequest(route, method string, status int, d time.Duration)
}

// Metrics records every request under its chi route pattern
// ("/activity/{id}", not "/activity/d0k3..."), so ids never become label
// values. Requests that match no route are recorded as "unmatched".
//
// The pattern is only complete after routing, so it is read once the
// handler has returned.
func Metrics(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			rec.RecordRequest(route, r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}
