// Package httputil provides the JSON response and decode helpers shared by
// all HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "conforma/pkg/domain-errors"
)

// maxBodyBytes caps request bodies; disposition records with embedded
// attachment metadata stay far below this.
const maxBodyBytes = 1 << 20

// errorResponse is the wire error envelope.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding failures after the
// header is written can only be logged by middleware; the status line is
// already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the wire envelope. Internal
// errors omit the description so infrastructure details never reach clients;
// every other code carries its domain message, which is written for end users.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Description = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.HTTPStatus(code), resp)
}

// DecodeJSON strictly decodes a request body into dst. Unknown fields,
// trailing garbage, and oversized bodies are all rejected with
// CodeBadRequest: write endpoints replace whole documents, so a silently
// dropped field would corrupt the record on the next save.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return dErrors.New(dErrors.CodeBadRequest, "request body too large")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON object")
	}
	return nil
}

// validatable constrains DecodeAndPrepare to request types whose pointer
// implements Validate.
type validatable[T any] interface {
	*T
	Validate() error
}

// DecodeAndPrepare decodes the body into a fresh T and runs its Validate
// hook. On failure the rejection is logged and the error response written,
// so handlers just return on !ok.
func DecodeAndPrepare[T any, PT validatable[T]](
	w http.ResponseWriter,
	r *http.Request,
	logger *slog.Logger,
	ctx context.Context,
	requestID string,
) (PT, bool) {
	req := PT(new(T))
	if err := DecodeJSON(w, r, req); err != nil {
		logger.WarnContext(ctx, "request body rejected",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
