// Package webhook принимает подписанные события платёжного провайдера.
//
// Ответы:
//   - 400 подпись не сошлась или тело не разбирается, состояние не меняется;
//   - 200 событие применено, проигнорировано или не сопоставлено с пользователем или планом;
//   - 500 временная ошибка хранилища или провайдера, провайдер повторит доставку.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/content-subscriptions/internal/paymentprovider"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/billing"
)

// SignatureHeader заголовок подписи Stripe.
const SignatureHeader = "Stripe-Signature"

const maxBodyBytes = 64 << 10

// Verifier проверка подписи и разбор события.
type Verifier interface {
	ParseEvent(payload []byte, sigHeader string) (*paymentprovider.Event, error)
}

// Service обработка события.
type Service interface {
	HandleEvent(ctx context.Context, evt *paymentprovider.Event) (*billing.Result, error)
}

// Handler обработчик POST /billing/webhook.
type Handler struct {
	log      *slog.Logger
	verifier Verifier
	service  Service
	metrics  *metrics.Metrics
}

// New создаёт Handler. m может быть nil.
func New(log *slog.Logger, verifier Verifier, service Service, m *metrics.Metrics) *Handler {
	return &Handler{log: log, verifier: verifier, service: service, metrics: m}
}

// ServeHTTP проверяет подпись над сырым телом и передаёт событие в billing.
// @Summary Webhook провайдера
// @Tags billing
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("failed to read webhook body", sl.Err(err))
		h.metrics.BillingEvent(billing.SourceWebhook, metrics.OutcomeInvalid)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payload"))
		return
	}

	evt, err := h.verifier.ParseEvent(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		log.Warn("webhook rejected", sl.Err(err))
		h.metrics.BillingEvent(billing.SourceWebhook, metrics.OutcomeInvalid)
		msg := "invalid signature"
		if errors.Is(err, paymentprovider.ErrMalformedPayload) {
			msg = "invalid payload"
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log = log.With(slog.String("event_id", evt.ID), slog.String("event_type", evt.Type))

	res, err := h.service.HandleEvent(r.Context(), evt)
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrUserNotFound), errors.Is(err, billing.ErrPlanNotResolved):
		log.Warn("webhook acknowledged without changes", sl.Err(err))
		render.JSON(w, r, response.StatusOKWithData(map[string]any{"received": true, "applied": false}))
		return
	default:
		log.Error("failed to handle webhook", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"received": true,
		"applied":  res != nil,
	}))
}
