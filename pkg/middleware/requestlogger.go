package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalogcart/pkg/logger"
)

// SessionIDHeader lets clients tag requests with their cart session so that
// logs for routes without a session in the path can still be correlated.
const SessionIDHeader = "X-Session-ID"

// RequestLogger stores a request-scoped logger in the context carrying
// correlation_id, session_id, trace_id and span_id. Mount it after
// RequestLogging and Tracing so those fields are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if sessionID := r.Header.Get(SessionIDHeader); sessionID != "" {
				ctx = logger.WithSessionID(ctx, sessionID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession returns r with sessionID attached to its context and its
// request-scoped logger. Handlers call it once the session is known from the
// path or body.
func WithSession(r *http.Request, sessionID string) *http.Request {
	ctx := r.Context()
	if sessionID == "" || logger.SessionIDFromContext(ctx) == sessionID {
		return r
	}
	ctx = logger.WithSessionID(ctx, sessionID)
	ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("session_id", sessionID)))
	return r.WithContext(ctx)
}
