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

	"conforma/internal/capa/service"
	"conforma/internal/capa/store"
	auditpublisher "conforma/pkg/platform/audit/publisher"
	auditmemory "conforma/pkg/platform/audit/store/memory"
	"conforma/pkg/requestcontext"
)

// fixedClock pins the request time so action numbers are deterministic, the
// way the deployment's request-time middleware pins them to arrival time.
var fixedClock = time.Date(2025, 2, 6, 14, 5, 0, 0, time.UTC)

func newActionRouter(t *testing.T) http.Handler {
	t.Helper()
	capas := store.NewInMemoryStore()
	publisher := auditpublisher.NewPublisher(auditmemory.NewInMemoryStore())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := service.New(capas,
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
	)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), "qa.lead@conforma.io", "quality_manager")
			ctx = requestcontext.WithTime(ctx, fixedClock)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	New(svc, logger).Register(r)
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

func createAction(t *testing.T, router http.Handler, payload map[string]any) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/capas", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating action, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return created.ID
}

func TestCreateActionViaHandlers(t *testing.T) {
	router := newActionRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/capas", map[string]any{
		"title": "Recalibrate torque drivers on line 2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating action, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID       uuid.UUID `json:"id"`
		Number   string    `json:"number"`
		Status   string    `json:"status"`
		Priority string    `json:"priority"`
		Type     string    `json:"type"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected id in response")
	}
	if created.Number != "CAPA-20250206-1405" {
		t.Fatalf("expected derived number CAPA-20250206-1405, got %q", created.Number)
	}
	if created.Status != "draft" {
		t.Fatalf("expected manually raised action to start in draft, got %q", created.Status)
	}
	if created.Priority != "medium" || created.Type != "corrective" {
		t.Fatalf("expected defaults medium/corrective, got %q/%q", created.Priority, created.Type)
	}

	rec = doJSON(t, router, http.MethodPost, "/capas", map[string]any{
		"title":     "Audit supplier heat-treat certs",
		"priority":  "high",
		"type":      "preventive",
		"category":  "supplier",
		"rootCause": "Certs accepted without cross-check",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating action, got %d: %s", rec.Code, rec.Body.String())
	}
	var explicit struct {
		Priority  string `json:"priority"`
		Type      string `json:"type"`
		Category  string `json:"category"`
		RootCause string `json:"rootCause"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&explicit); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if explicit.Priority != "high" || explicit.Type != "preventive" {
		t.Fatalf("expected explicit priority/type echoed, got %q/%q", explicit.Priority, explicit.Type)
	}
	if explicit.Category != "supplier" || explicit.RootCause == "" {
		t.Fatalf("expected category and root cause carried through, got %q/%q", explicit.Category, explicit.RootCause)
	}
}

func TestCreateActionValidation(t *testing.T) {
	router := newActionRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/capas", map[string]any{
		"description": "no title",
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

	rec = doJSON(t, router, http.MethodPost, "/capas", map[string]any{
		"title":    "ok",
		"priority": "urgent",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown priority, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/capas", map[string]any{
		"title": "ok",
		"type":  "containment",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/capas", map[string]any{
		"title": "ok",
		"bogus": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestActionStatusMachineViaHandlers(t *testing.T) {
	router := newActionRouter(t)
	id := createAction(t, router, map[string]any{
		"title": "Replace worn locating fixture",
	})

	// Skipping ahead is an illegal edge, not a bad request body.
	rec := doJSON(t, router, http.MethodPut, "/capas/"+id+"/status", map[string]any{
		"status": "completed",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for illegal edge, got %d", rec.Code)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if envelope.Error != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q", envelope.Error)
	}

	walk := []string{
		"open",
		"in_progress",
		"under_investigation",
		"implementing",
		"pending_verification",
		"completed",
		"verified",
		"closed",
	}
	for _, target := range walk {
		rec = doJSON(t, router, http.MethodPut, "/capas/"+id+"/status", map[string]any{
			"status":  target,
			"comment": "moving to " + target,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 transitioning to %s, got %d: %s", target, rec.Code, rec.Body.String())
		}
		var moved struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&moved); err != nil {
			t.Fatalf("failed to decode transition response: %v", err)
		}
		if moved.Status != target {
			t.Fatalf("expected status %s, got %q", target, moved.Status)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/capas/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching action, got %d", rec.Code)
	}
	var fetched struct {
		Status  string `json:"status"`
		Actions []struct {
			Type    string `json:"type"`
			Actor   string `json:"actor"`
			Comment string `json:"comment"`
		} `json:"actions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("failed to decode action: %v", err)
	}
	if fetched.Status != "closed" {
		t.Fatalf("expected closed, got %q", fetched.Status)
	}
	if len(fetched.Actions) != len(walk) {
		t.Fatalf("expected %d status_change entries, got %d", len(walk), len(fetched.Actions))
	}
	last := fetched.Actions[len(fetched.Actions)-1]
	if last.Type != "status_change" || last.Actor != "qa.lead@conforma.io" {
		t.Fatalf("unexpected final entry: %+v", last)
	}
	if last.Comment != "moving to closed" {
		t.Fatalf("expected transition comment carried through, got %q", last.Comment)
	}

	// closed is terminal; there is no way back out.
	rec = doJSON(t, router, http.MethodPut, "/capas/"+id+"/status", map[string]any{
		"status": "open",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 leaving closed, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/capas/"+id+"/status", map[string]any{
		"status": "paused",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestCancelFromOpenViaHandlers(t *testing.T) {
	router := newActionRouter(t)
	id := createAction(t, router, map[string]any{
		"title": "Duplicate of CAPA-20250115-0930",
	})

	rec := doJSON(t, router, http.MethodPut, "/capas/"+id+"/status", map[string]any{
		"status": "open",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 opening action, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPut, "/capas/"+id+"/status", map[string]any{
		"status":  "cancelled",
		"comment": "duplicate record",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 cancelling, got %d: %s", rec.Code, rec.Body.String())
	}
	var cancelled struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&cancelled); err != nil {
		t.Fatalf("failed to decode cancel response: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
}

func TestAddActionEntryViaHandlers(t *testing.T) {
	router := newActionRouter(t)
	id := createAction(t, router, map[string]any{
		"title": "Contain suspect lot 8812",
	})

	// Omitted type defaults to task.
	rec := doJSON(t, router, http.MethodPost, "/capas/"+id+"/actions", map[string]any{
		"comment": "Ordered replacement tooling",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 appending task, got %d: %s", rec.Code, rec.Body.String())
	}
	var afterTask struct {
		Actions []struct {
			Type    string `json:"type"`
			Actor   string `json:"actor"`
			Comment string `json:"comment"`
		} `json:"actions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&afterTask); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(afterTask.Actions) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(afterTask.Actions))
	}
	if afterTask.Actions[0].Type != "task" || afterTask.Actions[0].Actor != "qa.lead@conforma.io" {
		t.Fatalf("unexpected entry: %+v", afterTask.Actions[0])
	}

	rec = doJSON(t, router, http.MethodPost, "/capas/"+id+"/actions", map[string]any{
		"type":    "note",
		"comment": "Vendor confirmed ship date",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 appending note, got %d", rec.Code)
	}
	var afterNote struct {
		Actions []struct {
			Type string `json:"type"`
		} `json:"actions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&afterNote); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(afterNote.Actions) != 2 || afterNote.Actions[1].Type != "note" {
		t.Fatalf("expected appended note entry, got %+v", afterNote.Actions)
	}

	// status_change entries belong to the status machine.
	rec = doJSON(t, router, http.MethodPost, "/capas/"+id+"/actions", map[string]any{
		"type":    "status_change",
		"comment": "sneaking a status in",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for reserved entry type, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/capas/"+id+"/actions", map[string]any{
		"type": "note",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing comment, got %d", rec.Code)
	}
}

func TestListActionsViaHandlers(t *testing.T) {
	router := newActionRouter(t)
	draftID := createAction(t, router, map[string]any{
		"title": "Still being drafted",
	})
	openID := createAction(t, router, map[string]any{
		"title": "Already in motion",
	})
	rec := doJSON(t, router, http.MethodPut, "/capas/"+openID+"/status", map[string]any{
		"status": "open",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 opening action, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/capas?status=draft", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing, got %d", rec.Code)
	}
	var listed []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != draftID {
		t.Fatalf("expected only the draft action, got %v", listed)
	}

	rec = doJSON(t, router, http.MethodGet, "/capas?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/capas/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/capas/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}
