// Package me возвращает профиль подписки текущего пользователя.
package me

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
)

// Handler обработчик GET /me/subscription. Профиль уже загружен SubscriberMiddleware.
type Handler struct{}

// New создаёт Handler.
func New() *Handler {
	return &Handler{}
}

// ServeHTTP отдаёт профиль подписчика.
// @Summary Текущая подписка
// @Tags subscription
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Router /me/subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub := middlewarectx.SubscriberFrom(r.Context())
	if sub == nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("authentication required"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"username": sub.Username,
		"profile":  sub.Profile,
	}))
}
