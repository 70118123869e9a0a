// Package document отдаёт защищённый PDF публикации.
package document

import (
	"context"
	"errors"
	"fmt"
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

// Service чтение документа.
type Service interface {
	Document(ctx context.Context, sub *models.Subscriber, slug string) ([]byte, error)
}

// Handler обработчик GET /content/{slug}/pdf.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отдаёт расшифрованный PDF без кеширования.
// Любой отказ в доступе отвечает 403.
// @Summary PDF публикации
// @Tags content
// @Produce application/pdf
// @Param slug path string true "Slug публикации"
// @Success 200 {file} binary
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /content/{slug}/pdf [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.document"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	slug := chi.URLParam(r, "slug")
	data, err := h.service.Document(r.Context(), middlewarectx.SubscriberFrom(r.Context()), slug)
	if d, ok := denied.From(err); ok {
		log.Info("document access denied", slog.String("slug", slug), slog.String("reason", d.Decision.String()))
		denied.Render(w, r, d, http.StatusForbidden, nil)
		return
	}
	switch {
	case err == nil:
	case errors.Is(err, content.ErrNotFound), errors.Is(err, content.ErrNoDocument):
		log.Debug("document not available", slog.String("slug", slug), sl.Err(err))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("document not found"))
		return
	default:
		log.Error("failed to read document", slog.String("slug", slug), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "application/pdf")
	hdr.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", slug+".pdf"))
	hdr.Set("Content-Length", strconv.Itoa(len(data)))
	hdr.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	hdr.Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn("failed to write document", slog.String("slug", slug), sl.Err(err))
	}
}
