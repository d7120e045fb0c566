package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

var accessLog = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Logger writes one JSON access-log line per request.
func Logger(next http.Handler) http.Handler {
	return LoggerTo(accessLog)(next)
}

func LoggerTo(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", recorder.status),
				slog.Int64("durationMs", time.Since(start).Milliseconds()),
				slog.String("requestId", GetRequestID(r.Context())),
			)
		})
	}
}
