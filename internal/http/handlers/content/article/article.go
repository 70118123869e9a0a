// Package article отдаёт публикацию с проверкой доступа по плану.
package article

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/content/denied"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/content"
)

// Service чтение публикации.
type Service interface {
	Article(ctx context.Context, sub *models.Subscriber, slug string) (*models.Article, error)
}

// Handler обработчик GET /content/{slug}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отдаёт публикацию. При отказе 401 или 403 с превью и нужным планом.
// @Summary Публикация
// @Tags content
// @Produce json
// @Param slug path string true "Slug публикации"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /content/{slug} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.article"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	slug := chi.URLParam(r, "slug")
	a, err := h.service.Article(r.Context(), middlewarectx.SubscriberFrom(r.Context()), slug)
	if d, ok := denied.From(err); ok {
		log.Debug("article access denied", slog.String("slug", slug), slog.String("reason", d.Decision.String()))
		denied.Render(w, r, d, denied.Status(d), a)
		return
	}
	switch {
	case err == nil:
	case errors.Is(err, content.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("content not found"))
		return
	default:
		log.Error("failed to get article", slog.String("slug", slug), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"article":      a,
		"has_document": a.HasDocument(),
	}))
}
