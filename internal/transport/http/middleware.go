package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// UsernameHeader carries the identity verified by the upstream gateway.
const UsernameHeader = "X-Username"

type ctxKey int

const usernameKey ctxKey = iota

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestObserver receives one call per served request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// RequestLogger logs every request and reports it to observer (may be nil).
// It must run after middleware.RequestID.
func RequestLogger(logger *slog.Logger, observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())

			next.ServeHTTP(sw, r)

			elapsed := time.Since(start)
			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			logger.Info("http request",
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration_ms", elapsed.Milliseconds(),
				"user", r.Header.Get(UsernameHeader),
			)
			if observer != nil {
				route := ""
				if rc := chi.RouteContext(r.Context()); rc != nil {
					route = rc.RoutePattern()
				}
				observer.ObserveRequest(r.Method, route, sw.status, elapsed)
			}
		})
	}
}

// RequireUser rejects requests without an identity and stores the caller
// in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.Header.Get(UsernameHeader))
		if username == "" {
			writeErr(w, http.StatusUnauthorized, "missing "+UsernameHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), usernameKey, username)))
	})
}

// Caller returns the identity stored by RequireUser.
func Caller(ctx context.Context) string {
	v, _ := ctx.Value(usernameKey).(string)
	return v
}
