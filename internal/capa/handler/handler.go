// Package handler wires corrective-action endpoints to the action service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"conforma/internal/capa/models"
	"conforma/pkg/domain"
	"conforma/pkg/platform/httputil"
	"conforma/pkg/requestcontext"
)

// Service defines the corrective-action operations the HTTP layer exposes.
type Service interface {
	Create(ctx context.Context, in models.CreateInput) (*models.CAPA, error)
	Get(ctx context.Context, capaID domain.CAPAID) (*models.CAPA, error)
	List(ctx context.Context, filter models.Filter) ([]*models.CAPA, error)
	Transition(ctx context.Context, capaID domain.CAPAID, target models.Status, comment string) (*models.CAPA, error)
	AddAction(ctx context.Context, capaID domain.CAPAID, actionType models.ActionType, comment string) (*models.CAPA, error)
}

// Handler wires corrective-action endpoints to the action service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a corrective-action handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts corrective-action endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/capas", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{capaID}", h.HandleGet)
		r.Put("/{capaID}/status", h.HandleTransition)
		r.Post("/{capaID}/actions", h.HandleAddAction)
	})
}

// HandleCreate handles POST /capas requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Create(ctx, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "corrective action creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "corrective action created",
		"request_id", requestID,
		"capa_id", c.ID,
		"number", c.Number,
	)
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleList handles GET /capas requests. Accepts an optional ?status=
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
		h.logger.ErrorContext(ctx, "corrective action listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /capas/{capaID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	capaID, ok := h.pathCAPAID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(ctx, capaID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleTransition handles PUT /capas/{capaID}/status requests. Illegal
// edges come back as invalid_transition without touching the record.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	capaID, ok := h.pathCAPAID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Transition(ctx, capaID, req.ParsedStatus(), req.Comment)
	if err != nil {
		h.logger.ErrorContext(ctx, "corrective action transition failed",
			"request_id", requestID,
			"capa_id", capaID,
			"target_status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "corrective action transitioned",
		"request_id", requestID,
		"capa_id", c.ID,
		"number", c.Number,
		"status", c.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, c)
}

// HandleAddAction handles POST /capas/{capaID}/actions requests.
func (h *Handler) HandleAddAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	capaID, ok := h.pathCAPAID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddActionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.AddAction(ctx, capaID, req.ParsedType(), req.Comment)
	if err != nil {
		h.logger.ErrorContext(ctx, "corrective action entry failed",
			"request_id", requestID,
			"capa_id", capaID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) pathCAPAID(w http.ResponseWriter, r *http.Request) (domain.CAPAID, bool) {
	capaID, err := domain.ParseCAPAID(chi.URLParam(r, "capaID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.CAPAID{}, false
	}
	return capaID, true
}
