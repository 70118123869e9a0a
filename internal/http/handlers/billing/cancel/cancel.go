// Package cancel отменяет платную подписку в конце оплаченного периода.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/billing"
)

// Service отмена подписки.
type Service interface {
	Cancel(ctx context.Context, userUID string) error
}

// Handler обработчик POST /billing/cancel.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отвечает {status, message}.
// @Summary Отмена подписки
// @Tags billing
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.StatusMessage
// @Failure 400 {object} response.StatusMessage
// @Failure 405 {object} response.StatusMessage
// @Failure 500 {object} response.StatusMessage
// @Router /billing/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.Failure("method not allowed"))
		return
	}

	userUID := middlewarectx.UserUIDFrom(r.Context())
	err := h.service.Cancel(r.Context(), userUID)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrNoActiveSubscription):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Failure("no active subscription"))
		return
	case errors.Is(err, billing.ErrProvider):
		log.Error("provider failed to cancel subscription", slog.String("user_uid", userUID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Failure("payment provider error: "+err.Error()))
		return
	default:
		log.Error("failed to cancel subscription", slog.String("user_uid", userUID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Failure("internal service error"))
		return
	}

	log.Info("subscription will be cancelled", slog.String("user_uid", userUID))
	render.JSON(w, r, response.Success("subscription will be cancelled at period end"))
}
