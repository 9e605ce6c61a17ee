package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "conforma/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})

	t.Run("concurrency conflict maps to 409", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeConcurrencyConflict, "record changed concurrently, retry"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "concurrency_conflict" {
			t.Fatalf("expected error code concurrency_conflict, got %q", body["error"])
		}
	})

	t.Run("uncoded error is treated as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("pq: connection refused"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("raw infrastructure errors must not leak a description")
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	t.Run("decodes valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"bent flange"}`))
		w := httptest.NewRecorder()

		var p payload
		if err := DecodeJSON(w, r, &p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Title != "bent flange" {
			t.Fatalf("expected title decoded, got %q", p.Title)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x","bogus":1}`))
		w := httptest.NewRecorder()

		var p payload
		err := DecodeJSON(w, r, &p)
		if err == nil || !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request for unknown field, got %v", err)
		}
	})

	t.Run("rejects trailing JSON", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}{"title":"y"}`))
		w := httptest.NewRecorder()

		var p payload
		err := DecodeJSON(w, r, &p)
		if err == nil || !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request for trailing JSON, got %v", err)
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
		w := httptest.NewRecorder()

		var p payload
		err := DecodeJSON(w, r, &p)
		if err == nil || !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request for malformed body, got %v", err)
		}
	})
}

type fakeRequest struct {
	Title string `json:"title"`
}

func (r *fakeRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid body passes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"bent flange"}`))
		w := httptest.NewRecorder()

		req, ok := DecodeAndPrepare[fakeRequest](w, r, logger, r.Context(), "req-1")
		if !ok {
			t.Fatalf("expected ok, response: %s", w.Body.String())
		}
		if req.Title != "bent flange" {
			t.Fatalf("expected decoded title, got %q", req.Title)
		}
	})

	t.Run("validation failure writes envelope", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"  "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[fakeRequest](w, r, logger, r.Context(), "req-2")
		if ok {
			t.Fatal("expected validation rejection")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "title is required") {
			t.Fatalf("expected validation message in body, got %s", w.Body.String())
		}
	})

	t.Run("decode failure writes envelope", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[fakeRequest](w, r, logger, r.Context(), "req-3")
		if ok {
			t.Fatal("expected decode rejection")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}
