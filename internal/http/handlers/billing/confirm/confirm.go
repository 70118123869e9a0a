// Package confirm обрабатывает возврат пользователя со страницы оплаты.
// Это дополнительный путь сверки: основной источник истины webhook.
package confirm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/billing"
)

// Service сверка сессии по редиректу.
type Service interface {
	ConfirmRedirect(ctx context.Context, sessionID string) (*billing.Result, error)
}

// Handler обработчик GET /billing/success.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP сверяет сессию, если она оплачена.
// @Summary Возврат после оплаты
// @Tags billing
// @Produce json
// @Param session_id query string true "ID checkout-сессии"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /billing/success [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.confirm"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("session_id is required"))
		return
	}

	res, err := h.service.ConfirmRedirect(r.Context(), sessionID)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrUserNotFound), errors.Is(err, billing.ErrPlanNotResolved):
		log.Warn("payment confirmed but not reconciled", slog.String("session_id", sessionID), sl.Err(err))
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"session_id": sessionID,
			"activated":  false,
			"message":    "payment received, activation is pending",
		}))
		return
	default:
		log.Error("failed to confirm checkout", slog.String("session_id", sessionID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not confirm payment"))
		return
	}

	data := map[string]any{
		"session_id": res.SessionID,
		"activated":  res.Paid,
	}
	if res.Paid {
		data["plan"] = res.PlanName
		data["message"] = "subscription activated"
	} else {
		data["message"] = "payment not completed yet"
	}
	render.JSON(w, r, response.StatusOKWithData(data))
}
