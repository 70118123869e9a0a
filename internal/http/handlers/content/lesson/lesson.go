// Package lesson отдаёт урок курса с проверкой доступа.
package lesson

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

// Service чтение урока.
type Service interface {
	Lesson(ctx context.Context, sub *models.Subscriber, courseSlug string, lessonID int64) (*models.Lesson, error)
}

// Handler обработчик GET /courses/{slug}/lessons/{lessonID}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP
// @Summary Урок курса
// @Tags content
// @Produce json
// @Param slug path string true "Slug курса"
// @Param lessonID path int true "ID урока"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /courses/{slug}/lessons/{lessonID} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.lesson"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	courseSlug := chi.URLParam(r, "slug")
	lessonID, err := strconv.ParseInt(chi.URLParam(r, "lessonID"), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid lesson id"))
		return
	}

	l, err := h.service.Lesson(r.Context(), middlewarectx.SubscriberFrom(r.Context()), courseSlug, lessonID)
	if d, ok := denied.From(err); ok {
		denied.Render(w, r, d, denied.Status(d), l)
		return
	}
	switch {
	case err == nil:
	case errors.Is(err, content.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("lesson not found"))
		return
	default:
		log.Error("failed to get lesson",
			slog.String("course", courseSlug),
			slog.Int64("lesson_id", lessonID),
			sl.Err(err),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"lesson": l,
	}))
}
