// Package upload принимает PDF публикации от администратора.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/content"
)

// FormField имя поля multipart-формы с файлом.
const FormField = "file"

// DefaultMaxBytes предел размера загрузки по умолчанию.
const DefaultMaxBytes = 32 << 20

// Service прикрепление документа.
type Service interface {
	AttachDocument(ctx context.Context, slug string, data []byte) (string, error)
}

// Handler обработчик POST /admin/content/{slug}/pdf.
type Handler struct {
	log      *slog.Logger
	service  Service
	maxBytes int64
}

// New создаёт Handler. maxBytes <= 0 означает DefaultMaxBytes.
func New(log *slog.Logger, service Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Handler{log: log, service: service, maxBytes: maxBytes}
}

// ServeHTTP принимает файл как multipart (поле file) или как сырое тело.
// @Summary Загрузка PDF публикации
// @Tags admin
// @Security BearerAuth
// @Accept multipart/form-data
// @Accept application/pdf
// @Produce json
// @Param slug path string true "Slug публикации"
// @Param file formData file false "PDF"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /admin/content/{slug}/pdf [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.upload"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	slug := chi.URLParam(r, "slug")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	data, err := h.readFile(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, response.Error("file too large"))
			return
		}
		log.Warn("failed to read upload", slog.String("slug", slug), sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid upload"))
		return
	}
	if len(data) == 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("empty file"))
		return
	}

	name, err := h.service.AttachDocument(r.Context(), slug, data)
	switch {
	case err == nil:
	case errors.Is(err, content.ErrNotPDF):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("file is not a pdf"))
		return
	case errors.Is(err, content.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("content not found"))
		return
	default:
		log.Error("failed to attach document", slog.String("slug", slug), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("document uploaded", slog.String("slug", slug), slog.Int("bytes", len(data)))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"slug":     slug,
		"document": name,
		"bytes":    len(data),
	}))
}

func (h *Handler) readFile(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		return nil, err
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	f, _, err := r.FormFile(FormField)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}
