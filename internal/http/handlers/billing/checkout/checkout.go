// Package checkout создаёт сессию оплаты и перенаправляет пользователя к провайдеру.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/billing"
)

// Service создание checkout-сессии.
type Service interface {
	CreateCheckout(ctx context.Context, userUID string, planID int64) (string, error)
}

// Handler обработчик POST /billing/checkout/{planID}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отвечает 303 на страницу оплаты.
// @Summary Оформление подписки
// @Tags billing
// @Security BearerAuth
// @Param planID path int true "ID плана"
// @Success 303
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /billing/checkout/{planID} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	planID, err := strconv.ParseInt(chi.URLParam(r, "planID"), 10, 64)
	if err != nil {
		log.Warn("invalid plan id", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid plan id"))
		return
	}

	userUID := middlewarectx.UserUIDFrom(r.Context())
	url, err := h.service.CreateCheckout(r.Context(), userUID, planID)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrPlanNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	case errors.Is(err, billing.ErrPlanNotConfigured), errors.Is(err, billing.ErrProductWithoutPrice):
		log.Warn("plan cannot be purchased", slog.Int64("plan_id", planID), sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("plan is not available for purchase"))
		return
	default:
		log.Error("failed to create checkout session", slog.Int64("plan_id", planID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not start checkout"))
		return
	}

	http.Redirect(w, r, url, http.StatusSeeOther)
}
