// Package cancelled подтверждает отказ пользователя от оплаты.
package cancelled

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
)

// Handler обработчик GET /billing/cancelled.
type Handler struct{}

// New создаёт Handler.
func New() *Handler {
	return &Handler{}
}

// ServeHTTP ничего не меняет, только отвечает.
// @Summary Оплата отменена
// @Tags billing
// @Produce json
// @Success 200 {object} response.Response
// @Router /billing/cancelled [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "checkout cancelled, no charge was made",
	}))
}
