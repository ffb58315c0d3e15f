package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"chat-relay/internal/logging"
)

// Logger attaches a request-scoped logrus entry to the context and logs each
// completed request. Health checks are not logged.
func Logger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			entry := logger.WithFields(logrus.Fields{
				"request_id": GetRequestID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"client_ip":  r.RemoteAddr,
			})
			ctx := logging.WithContext(r.Context(), entry)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if r.URL.Path == "/health" {
				return
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			done := entry.WithFields(logrus.Fields{
				"status":     status,
				"latency_ms": time.Since(start).Milliseconds(),
				"bytes":      ww.BytesWritten(),
			})

			switch {
			case status >= 500:
				done.Error("request completed with server error")
			case status >= 400:
				done.Warn("request completed with client error")
			default:
				done.Info("request completed")
			}
		})
	}
}
