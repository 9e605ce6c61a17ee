// Package handler wires review board endpoints to the board projector and
// the disposition approval path. Board ids are resolved to their native or
// virtual form exactly once, here.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"conforma/internal/mrb/models"
	ncrModels "conforma/internal/ncr/models"
	ncrservice "conforma/internal/ncr/service"
	"conforma/pkg/domain"
	"conforma/pkg/platform/httputil"
	"conforma/pkg/requestcontext"
)

// Projector defines the board operations the HTTP layer exposes.
type Projector interface {
	ListAll(ctx context.Context) ([]models.View, error)
	Get(ctx context.Context, ref models.Ref) (models.View, error)
	SourceNCR(ctx context.Context, ref models.Ref) (domain.NCRID, error)
	CreateNative(ctx context.Context, in models.CreateInput) (*models.MRB, error)
	Delete(ctx context.Context, ref models.Ref) error
}

// Approver is the disposition approval entry point. Approvals arrive
// addressed to a board row and land on the backing report.
type Approver interface {
	Approve(ctx context.Context, ncrID domain.NCRID, in ncrservice.ApprovalInput) (*ncrModels.NCR, error)
}

// Handler wires board endpoints to the projector.
type Handler struct {
	projector Projector
	approver  Approver
	logger    *slog.Logger
	admin     func(http.Handler) http.Handler
}

type Option func(h *Handler)

// WithAdminMiddleware guards the destructive board routes. Without it the
// delete route mounts open, which only test routers should do.
func WithAdminMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.admin = mw
	}
}

// New constructs a board handler with its dependencies.
func New(projector Projector, approver Approver, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		projector: projector,
		approver:  approver,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts board endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/mrb", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{mrbID}", h.HandleGet)
		r.Post("/{mrbID}/disposition/approve", h.HandleApprove)
		if h.admin != nil {
			r.With(h.admin).Delete("/{mrbID}", h.HandleDelete)
		} else {
			r.Delete("/{mrbID}", h.HandleDelete)
		}
	})
}

// HandleCreate handles POST /mrb requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateBoardRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	m, err := h.projector.CreateNative(ctx, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "board record creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "board record created",
		"request_id", requestID,
		"mrb_id", m.ID,
		"number", m.Number,
	)
	httputil.WriteJSON(w, http.StatusCreated, m)
}

// HandleList handles GET /mrb requests: every native record plus the
// virtual row of every escalated report.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	views, err := h.projector.ListAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "board listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleGet handles GET /mrb/{mrbID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref, ok := h.pathRef(w, r)
	if !ok {
		return
	}
	view, err := h.projector.Get(ctx, ref)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleApprove handles POST /mrb/{mrbID}/disposition/approve requests. The
// response is the updated report, not the board row: the approval trail and
// closure state live there.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ref, ok := h.pathRef(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ncrID, err := h.projector.SourceNCR(ctx, ref)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.approver.Approve(ctx, ncrID, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "disposition approval failed",
			"request_id", requestID,
			"ncr_id", ncrID,
			"approver", req.ApprovedBy,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "disposition approval recorded",
		"request_id", requestID,
		"ncr_id", n.ID,
		"number", n.Number,
		"status", n.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, n)
}

// HandleDelete handles DELETE /mrb/{mrbID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ref, ok := h.pathRef(w, r)
	if !ok {
		return
	}
	if err := h.projector.Delete(ctx, ref); err != nil {
		h.logger.ErrorContext(ctx, "board record deletion failed",
			"request_id", requestID,
			"virtual", ref.IsVirtual(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "board record deleted",
		"request_id", requestID,
		"virtual", ref.IsVirtual(),
	)
	httputil.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) pathRef(w http.ResponseWriter, r *http.Request) (models.Ref, bool) {
	ref, err := models.ParseRef(chi.URLParam(r, "mrbID"))
	if err != nil {
		httputil.WriteError(w, err)
		return models.Ref{}, false
	}
	return ref, true
}
