package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sieve/internal/filters/models"
	"sieve/internal/filters/service/update"
	"sieve/internal/platform/middleware"
	"sieve/internal/token"
	dErrors "sieve/pkg/domain-errors"
	"sieve/pkg/platform/httputil"
)

// Updater runs update cycles. Implemented by update.Orchestrator.
type Updater interface {
	Run(ctx context.Context, tasks []models.FilterUpdateTask) ([]models.FilterMetadata, error)
	UpdateEnabled(ctx context.Context, force bool) ([]models.FilterMetadata, error)
	CheckForUpdates(ctx context.Context, ids []models.FilterID) ([]models.FilterMetadata, error)
}

// Manager owns the subscription lifecycle. Implemented by manage.Service.
type Manager interface {
	Subscriptions(ctx context.Context) ([]models.Subscription, error)
	Upsert(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	Remove(ctx context.Context, id models.FilterID) error
	Versions(ctx context.Context) ([]models.FilterVersionRecord, error)
}

// Kicker nudges the background scheduler into an early cycle. Implemented by
// schedule.Scheduler.
type Kicker interface {
	Kick()
}

// Handler wires the filter endpoints to the update and management services.
type Handler struct {
	updater      Updater
	manager      Manager
	kicker       Kicker
	jwtValidator middleware.JWTValidator
	logger       *slog.Logger
}

// New constructs a filters handler with its dependencies.
func New(updater Updater, manager Manager, kicker Kicker, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		updater:      updater,
		manager:      manager,
		kicker:       kicker,
		jwtValidator: jwtValidator,
		logger:       logger,
	}
}

// Register mounts the filter endpoints on the router. Read endpoints are
// open; mutating endpoints require a token with the filters:update scope.
func (h *Handler) Register(r chi.Router) {
	r.Route("/filters", func(r chi.Router) {
		r.Get("/versions", h.HandleVersions)
		r.Get("/subscriptions", h.HandleListSubscriptions)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
			r.Use(middleware.RequireScope(token.ScopeFiltersUpdate, h.logger))
			r.Post("/update", h.HandleUpdate)
			r.Post("/check", h.HandleCheck)
			r.Put("/subscriptions", h.HandleUpsertSubscription)
			r.Delete("/subscriptions/{filterID}", h.HandleRemoveSubscription)
		})
	})
}

// HandleUpdate handles POST /filters/update requests. With a body naming
// filter ids only those are refreshed; without one every enabled filter is,
// bypassing staleness policy.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	ids, ok := h.selection(w, r)
	if !ok {
		return
	}

	var (
		updated []models.FilterMetadata
		err     error
	)
	if len(ids) > 0 {
		tasks := make([]models.FilterUpdateTask, 0, len(ids))
		for _, id := range ids {
			tasks = append(tasks, models.FilterUpdateTask{FilterID: id, Force: true})
		}
		updated, err = h.updater.Run(ctx, tasks)
	} else {
		updated, err = h.updater.UpdateEnabled(ctx, true)
	}
	if err != nil {
		h.writeCycleError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "manual update finished",
		"request_id", requestID,
		"requested", len(ids),
		"updated", len(updated),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromMetadata(updated))
}

// HandleCheck handles POST /filters/check requests. Checks run through the
// recency throttle, so filters checked moments ago are skipped.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	ids, ok := h.selection(w, r)
	if !ok {
		return
	}

	updated, err := h.updater.CheckForUpdates(ctx, ids)
	if err != nil {
		h.writeCycleError(ctx, w, requestID, err)
		return
	}

	h.logger.InfoContext(ctx, "manual check finished",
		"request_id", requestID,
		"requested", len(ids),
		"updated", len(updated),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromMetadata(updated))
}

// HandleVersions handles GET /filters/versions requests.
func (h *Handler) HandleVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.manager.Versions(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing filter versions failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromVersionRecords(records))
}

// HandleListSubscriptions handles GET /filters/subscriptions requests.
func (h *Handler) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subs, err := h.manager.Subscriptions(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing subscriptions failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSubscriptions(subs))
}

// HandleUpsertSubscription handles PUT /filters/subscriptions requests.
func (h *Handler) HandleUpsertSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpsertSubscriptionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	saved, err := h.manager.Upsert(ctx, req.Subscription())
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			h.logger.WarnContext(ctx, "subscription rejected",
				"request_id", requestID,
				"filter_id", req.FilterID,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "saving subscription failed",
				"request_id", requestID,
				"filter_id", req.FilterID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	if saved.Enabled {
		// The first download happens in the background; the response does
		// not wait for the network.
		h.kicker.Kick()
	}

	h.logger.InfoContext(ctx, "subscription saved",
		"request_id", requestID,
		"filter_id", saved.FilterID.String(),
		"enabled", saved.Enabled,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSubscription(*saved))
}

// HandleRemoveSubscription handles DELETE /filters/subscriptions/{filterID}
// requests.
func (h *Handler) HandleRemoveSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := models.ParseFilterID(chi.URLParam(r, "filterID"))
	if err != nil {
		h.logger.WarnContext(ctx, "invalid filter id",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	if err := h.manager.Remove(ctx, id); err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "subscription not found",
				"request_id", requestID,
				"filter_id", id.String(),
			)
		} else {
			h.logger.ErrorContext(ctx, "removing subscription failed",
				"request_id", requestID,
				"filter_id", id.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "subscription removed",
		"request_id", requestID,
		"filter_id", id.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

// selection reads the optional body narrowing a run to specific filters. An
// empty body is valid and means every enabled filter.
func (h *Handler) selection(w http.ResponseWriter, r *http.Request) ([]models.FilterID, bool) {
	if r.ContentLength == 0 {
		return nil, true
	}

	req, ok := httputil.DecodeAndPrepare[FilterSelectionRequest](w, r, h.logger, r.Context(), middleware.GetRequestID(r.Context()))
	if !ok {
		return nil, false
	}
	return req.ParsedFilterIDs(), true
}

func (h *Handler) writeCycleError(ctx context.Context, w http.ResponseWriter, requestID string, err error) {
	if errors.Is(err, update.ErrCycleInFlight) {
		h.logger.WarnContext(ctx, "cycle rejected, another is in flight",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "an update cycle is already running"))
		return
	}

	h.logger.ErrorContext(ctx, "update cycle failed",
		"request_id", requestID,
		"error", err,
	)
	httputil.WriteError(w, err)
}
