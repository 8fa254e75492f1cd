package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sieve/internal/filters/models"
	"sieve/internal/platform/middleware"
	"sieve/internal/token"
	"sieve/pkg/platform/httputil"
)

// Service defines the interface for consent operations.
// Implemented by consent.Tracker.
type Service interface {
	AddFilterIDs(ctx context.Context, ids []models.FilterID) error
	ConsentedFilterIDs(ctx context.Context) []models.FilterID
	Reset(ctx context.Context) error
}

// Handler wires the consent endpoints to the consent tracker.
type Handler struct {
	service      Service
	jwtValidator middleware.JWTValidator
	logger       *slog.Logger
}

// New constructs a consent handler with its dependencies.
func New(service Service, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		service:      service,
		jwtValidator: jwtValidator,
		logger:       logger,
	}
}

// Register mounts the consent endpoints on the router. Listing is open;
// granting and resetting require a token with the consent:write scope.
func (h *Handler) Register(r chi.Router) {
	r.Route("/consent", func(r chi.Router) {
		r.Get("/", h.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			r.Use(middleware.RequireScope(token.ScopeConsentWrite, h.logger))
			r.Post("/", h.HandleGrant)
			r.Delete("/", h.HandleReset)
		})
	})
}

// HandleGrant handles POST /consent requests. Granting is idempotent: ids
// already in the set are left alone, and the response carries the full
// resulting set.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GrantConsentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.AddFilterIDs(ctx, req.ParsedFilterIDs()); err != nil {
		h.logger.ErrorContext(ctx, "granting consent failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consent granted",
		"request_id", requestID,
		"service_id", middleware.GetServiceID(ctx),
		"filter_ids", req.FilterIDs,
	)
	httputil.WriteJSON(w, http.StatusOK, FromConsentSet(h.service.ConsentedFilterIDs(ctx)))
}

// HandleList handles GET /consent requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	httputil.WriteJSON(w, http.StatusOK, FromConsentSet(h.service.ConsentedFilterIDs(ctx)))
}

// HandleReset handles DELETE /consent requests.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if err := h.service.Reset(ctx); err != nil {
		h.logger.ErrorContext(ctx, "resetting consent failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "consent reset",
		"request_id", requestID,
		"service_id", middleware.GetServiceID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}
