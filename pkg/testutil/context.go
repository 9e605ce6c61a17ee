package testutil

import (
	"context"
	"net/http"
	"time"

	"conforma/pkg/requestcontext"
)

// WithActor stamps the authenticated actor on the request context.
// This simulates what the actor middleware would do after validating a
// bearer token.
func WithActor(req *http.Request, actor, role string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), actor, role)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock. Record numbers and
// disposition timestamps derive from this value, so handler tests pin it to
// get deterministic output.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}

// WithClientMetadata attaches the client IP and User-Agent the way the
// metadata middleware does, for tests that assert on trail event metadata.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
