package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	capaservice "conforma/internal/capa/service"
	capastore "conforma/internal/capa/store"
	mrbstore "conforma/internal/mrb/store"
	"conforma/internal/ncr/service"
	"conforma/internal/ncr/store"
	auditpublisher "conforma/pkg/platform/audit/publisher"
	auditmemory "conforma/pkg/platform/audit/store/memory"
	tx "conforma/pkg/platform/tx"
	"conforma/pkg/requestcontext"
)

// fixedClock pins the request time so record numbers are deterministic, the
// way the deployment's request-time middleware pins them to arrival time.
var fixedClock = time.Date(2025, 2, 6, 14, 5, 0, 0, time.UTC)

func newReportRouter(t *testing.T) http.Handler {
	t.Helper()
	ncrs := store.NewInMemoryStore()
	mrbs := mrbstore.NewInMemoryStore()
	capas := capastore.NewInMemoryStore()
	publisher := auditpublisher.NewPublisher(auditmemory.NewInMemoryStore())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	capaSvc := capaservice.New(capas, capaservice.WithLogger(logger))
	svc := service.New(ncrs, mrbs, tx.NewMemoryRunner(),
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithCAPAGenerator(capaSvc),
	)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), "qa.lead@conforma.io", "quality_manager")
			ctx = requestcontext.WithTime(ctx, fixedClock)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(svc, publisher, logger).Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateCriticalReportViaHandlers(t *testing.T) {
	router := newReportRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ncrs", map[string]any{
		"title":      "Cracked casting on lot 8812",
		"severity":   "critical",
		"area":       "receiving",
		"partNumber": "CAST-8812",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating report, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID           uuid.UUID `json:"id"`
		Number       string    `json:"number"`
		Status       string    `json:"status"`
		LinkedCAPAID uuid.UUID `json:"linkedCapaId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected id in response")
	}
	if created.Number != "RCV-20250206-1405" {
		t.Fatalf("expected derived number RCV-20250206-1405, got %q", created.Number)
	}
	if created.Status != "open" {
		t.Fatalf("expected status open, got %q", created.Status)
	}
	if created.LinkedCAPAID == uuid.Nil {
		t.Fatalf("expected critical report to carry linkedCapaId")
	}
}

func TestCreateReportValidation(t *testing.T) {
	router := newReportRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ncrs", map[string]any{
		"severity": "minor",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", rec.Code)
	}
	var envelope struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if envelope.Error != "validation_error" {
		t.Fatalf("expected validation_error, got %q", envelope.Error)
	}
	if envelope.Description == "" {
		t.Fatalf("expected a description for the rejected field")
	}

	rec = doJSON(t, router, http.MethodPost, "/ncrs", map[string]any{
		"title":    "ok",
		"severity": "minor",
		"bogus":    true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/ncrs", map[string]any{
		"title":    "ok",
		"severity": "catastrophic",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown severity, got %d", rec.Code)
	}
}

func TestReportLifecycleViaHandlers(t *testing.T) {
	router := newReportRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ncrs", map[string]any{
		"title":    "Oversized bore on lot 4417",
		"severity": "major",
		"area":     "machining",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating report, got %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/ncrs/"+created.ID+"/escalate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 escalating, got %d: %s", rec.Code, rec.Body.String())
	}
	var escalated struct {
		Status    string `json:"status"`
		MRBID     string `json:"mrbId"`
		MRBNumber string `json:"mrbNumber"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&escalated); err != nil {
		t.Fatalf("failed to decode escalate response: %v", err)
	}
	if escalated.Status != "pending_disposition" {
		t.Fatalf("expected pending_disposition, got %q", escalated.Status)
	}
	if escalated.MRBID != "mrb-"+created.ID {
		t.Fatalf("expected virtual board id mrb-%s, got %q", created.ID, escalated.MRBID)
	}
	if escalated.MRBNumber != "MRB-20250206-1405" {
		t.Fatalf("expected board number MRB-20250206-1405, got %q", escalated.MRBNumber)
	}

	// A second escalation is a state conflict, not a validation problem.
	rec = doJSON(t, router, http.MethodPost, "/ncrs/"+created.ID+"/escalate", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 re-escalating, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/ncrs/"+created.ID+"/review", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 starting review, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/ncrs/"+created.ID+"/disposition", map[string]any{
		"decision":      "rework",
		"justification": "Machining can recover the dimension",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 setting disposition, got %d: %s", rec.Code, rec.Body.String())
	}
	var dispositioned struct {
		Disposition struct {
			Decision string `json:"decision"`
		} `json:"disposition"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&dispositioned); err != nil {
		t.Fatalf("failed to decode disposition response: %v", err)
	}
	if dispositioned.Disposition.Decision != "rework" {
		t.Fatalf("expected decision rework, got %q", dispositioned.Disposition.Decision)
	}

	rec = doJSON(t, router, http.MethodGet, "/ncrs?status=in_review", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing, got %d", rec.Code)
	}
	var listed []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("expected the report under in_review filter, got %v", listed)
	}
}

func TestUpdateReportViaHandlers(t *testing.T) {
	router := newReportRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ncrs", map[string]any{
		"title":    "Scuffed housing",
		"severity": "minor",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating report, got %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}

	rec = doJSON(t, router, http.MethodPut, "/ncrs/"+created.ID, map[string]any{
		"description": "Cosmetic scuff across the top face",
		"assignedTo":  "inspector.chen@conforma.io",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Description string `json:"description"`
		AssignedTo  string `json:"assignedTo"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode update response: %v", err)
	}
	if updated.AssignedTo != "inspector.chen@conforma.io" {
		t.Fatalf("expected assignee applied, got %q", updated.AssignedTo)
	}

	// Status is not patchable; the strict decoder rejects the field outright.
	rec = doJSON(t, router, http.MethodPut, "/ncrs/"+created.ID, map[string]any{
		"status": "closed",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 patching status, got %d", rec.Code)
	}
}

func TestReportTrailViaHandlers(t *testing.T) {
	router := newReportRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ncrs", map[string]any{
		"title":    "Scuffed housing",
		"severity": "minor",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating report, got %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/ncrs/"+created.ID+"/escalate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 escalating, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/ncrs/"+created.ID+"/trail", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching trail, got %d", rec.Code)
	}
	var events []struct {
		Action string `json:"Action"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatalf("failed to decode trail: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 trail events, got %d", len(events))
	}
	if events[0].Action != "ncr_created" || events[1].Action != "ncr_escalated" {
		t.Fatalf("unexpected trail actions: %v", events)
	}

	rec = doJSON(t, router, http.MethodGet, "/ncrs/"+uuid.NewString()+"/trail", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown report trail, got %d", rec.Code)
	}
}

func TestGetUnknownReport(t *testing.T) {
	router := newReportRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/ncrs/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown report, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/ncrs/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}
