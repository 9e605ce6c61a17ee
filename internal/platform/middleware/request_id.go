package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"conforma/pkg/requestcontext"
)

// RequestIDHeader is echoed back to clients and accepted from trusted
// upstreams (the CRM gateway forwards its own correlation ids).
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a correlation id to the request context and response.
// An incoming header value is reused so one id follows the request across
// services; otherwise a fresh UUID is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
