package httpapi

import (
	"net/http"

	"github.com/rs/zerolog"
)

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusCapturingResponseWriter) Write(p []byte) (int, error) {
	// Match net/http default behavior: implicit 200 on first write.
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func serverErrorLoggerMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusCapturingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.status < 500 {
				return
			}
			// 503 is the expected answer in degraded mode.
			ev := log.Error()
			if sw.status == http.StatusServiceUnavailable {
				ev = log.Warn()
			}
			withReqID(r.Context(), ev).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Msg("httpapi: server error response")
		})
	}
}
