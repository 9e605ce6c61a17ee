// Package handler wires nonconformance report endpoints to the report
// service. Raw ids and enums are parsed here, at the trust boundary;
// everything past Register works with typed values.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"conforma/internal/ncr/models"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
	audit "conforma/pkg/platform/audit"
	"conforma/pkg/platform/httputil"
	"conforma/pkg/requestcontext"
)

// Service defines the report operations the HTTP layer exposes.
type Service interface {
	Create(ctx context.Context, in models.CreateInput) (*models.NCR, error)
	Get(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error)
	List(ctx context.Context, filter models.Filter) ([]*models.NCR, error)
	Update(ctx context.Context, ncrID domain.NCRID, patch models.Patch) (*models.NCR, error)
	Escalate(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error)
	StartReview(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error)
	UpdateDisposition(ctx context.Context, ncrID domain.NCRID, in models.DispositionInput) (*models.NCR, error)
}

// TrailReader serves the per-record quality event trail.
type TrailReader interface {
	List(ctx context.Context, entityType, entityID string) ([]audit.Event, error)
}

// Handler wires report endpoints to the report service.
type Handler struct {
	service Service
	trail   TrailReader
	logger  *slog.Logger
}

// New constructs a report handler with its dependencies.
func New(service Service, trail TrailReader, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		trail:   trail,
		logger:  logger,
	}
}

// Register mounts report endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/ncrs", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{ncrID}", h.HandleGet)
		r.Put("/{ncrID}", h.HandleUpdate)
		r.Post("/{ncrID}/escalate", h.HandleEscalate)
		r.Post("/{ncrID}/review", h.HandleStartReview)
		r.Put("/{ncrID}/disposition", h.HandleUpdateDisposition)
		r.Get("/{ncrID}/trail", h.HandleTrail)
	})
}

// HandleCreate handles POST /ncrs requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	n, err := h.service.Create(ctx, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "report creation failed",
			"request_id", requestID,
			"severity", req.Severity,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "report created",
		"request_id", requestID,
		"ncr_id", n.ID,
		"number", n.Number,
		"severity", n.Severity,
	)
	httputil.WriteJSON(w, http.StatusCreated, n)
}

// HandleList handles GET /ncrs requests. Accepts an optional ?status=
// filter.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter models.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = status
	}

	out, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "report listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /ncrs/{ncrID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ncrID, ok := h.pathNCRID(w, r)
	if !ok {
		return
	}
	n, err := h.service.Get(ctx, ncrID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

// HandleUpdate handles PUT /ncrs/{ncrID} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ncrID, ok := h.pathNCRID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	n, err := h.service.Update(ctx, ncrID, req.Patch())
	if err != nil {
		h.logger.ErrorContext(ctx, "report update failed",
			"request_id", requestID,
			"ncr_id", ncrID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

// HandleEscalate handles POST /ncrs/{ncrID}/escalate requests.
func (h *Handler) HandleEscalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ncrID, ok := h.pathNCRID(w, r)
	if !ok {
		return
	}
	n, err := h.service.Escalate(ctx, ncrID)
	if err != nil {
		h.logger.ErrorContext(ctx, "report escalation failed",
			"request_id", requestID,
			"ncr_id", ncrID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "report escalated",
		"request_id", requestID,
		"ncr_id", n.ID,
		"number", n.Number,
		"mrb_number", n.MRBNumber,
	)
	httputil.WriteJSON(w, http.StatusOK, n)
}

// HandleStartReview handles POST /ncrs/{ncrID}/review requests.
func (h *Handler) HandleStartReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ncrID, ok := h.pathNCRID(w, r)
	if !ok {
		return
	}
	n, err := h.service.StartReview(ctx, ncrID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

// HandleUpdateDisposition handles PUT /ncrs/{ncrID}/disposition requests.
func (h *Handler) HandleUpdateDisposition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ncrID, ok := h.pathNCRID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DispositionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	n, err := h.service.UpdateDisposition(ctx, ncrID, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "disposition update failed",
			"request_id", requestID,
			"ncr_id", ncrID,
			"decision", req.Decision,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

// HandleTrail handles GET /ncrs/{ncrID}/trail requests. The trail is the
// cross-record quality event log, not the in-document history; the two
// agree on actions but the trail carries request metadata.
func (h *Handler) HandleTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ncrID, ok := h.pathNCRID(w, r)
	if !ok {
		return
	}
	// The record must exist even when its trail is empty.
	if _, err := h.service.Get(ctx, ncrID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.trail.List(ctx, "ncr", ncrID.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "trail listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"ncr_id", ncrID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trail"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) pathNCRID(w http.ResponseWriter, r *http.Request) (domain.NCRID, bool) {
	ncrID, err := domain.ParseNCRID(chi.URLParam(r, "ncrID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.NCRID{}, false
	}
	return ncrID, true
}
