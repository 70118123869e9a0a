// Package list отдаёт опубликованные публикации по категории.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

// Service список публикаций.
type Service interface {
	List(ctx context.Context, category string, limit, offset int) ([]*models.Article, error)
}

// Handler обработчик GET /content.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отдаёт страницу публикаций без текста.
// @Summary Список публикаций
// @Tags content
// @Produce json
// @Param category query string false "Категория"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /content [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid limit"))
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid offset"))
		return
	}
	category := q.Get("category")

	items, err := h.service.List(r.Context(), category, limit, offset)
	if err != nil {
		log.Error("failed to list content", slog.String("category", category), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}
	if items == nil {
		items = []*models.Article{}
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"items":  items,
		"count":  len(items),
		"offset": offset,
	}))
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
