// Package content выдаёт публикации, уроки и защищённые PDF с проверкой доступа по плану.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/content-subscriptions/internal/access"
	"github.com/magabrotheeeer/content-subscriptions/internal/cache"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/storage"
)

var (
	ErrNotFound   = errors.New("content not found")
	ErrNoDocument = errors.New("document not available")
	ErrNotPDF     = errors.New("file is not a pdf")
)

const plansTTL = time.Hour

// Лимиты выдачи списка.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var pdfMagic = []byte("%PDF-")

type DeniedError struct {
	Decision access.Decision
	Required *models.Plan
}

func (e *DeniedError) Error() string {
	return "access denied: " + e.Decision.String()
}

type Repository interface {
	GetPublishedArticle(ctx context.Context, slug string) (*models.Article, error)
	ListPublishedArticles(ctx context.Context, category string, limit, offset int) ([]*models.Article, error)
	ListCategories(ctx context.Context) ([]models.CategoryInfo, error)
	SetArticleDocument(ctx context.Context, slug, documentName string) (*string, error)
	GetLesson(ctx context.Context, courseSlug string, lessonID int64) (*models.Lesson, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	IncrementDailyVisit(ctx context.Context, day time.Time) (int64, error)
}

type Blobs interface {
	Put(ctx context.Context, name string, plaintext []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type Service struct {
	repo    Repository
	blobs   Blobs
	cache   Cache
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New создаёт Service. m может быть nil.
func New(repo Repository, blobs Blobs, c Cache, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		blobs:   blobs,
		cache:   c,
		metrics: m,
		log:     log,
	}
}

func gate(sub *models.Subscriber, required *models.Plan) error {
	if d := access.Evaluate(sub, required); d != access.Allowed {
		return &DeniedError{Decision: d, Required: required}
	}
	return nil
}

func (s *Service) article(ctx context.Context, op, slug string) (*models.Article, error) {
	a, err := s.repo.GetPublishedArticle(ctx, slug)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// Article возвращает публикацию целиком, если sub может её открыть.
// При отказе возвращает публикацию без текста и *DeniedError.
func (s *Service) Article(ctx context.Context, sub *models.Subscriber, slug string) (*models.Article, error) {
	const op = "content.Article"

	a, err := s.article(ctx, op, slug)
	if err != nil {
		return nil, err
	}
	if err := gate(sub, a.RequiredPlan); err != nil {
		a.Content = ""
		a.VideoURL = nil
		return a, err
	}
	return a, nil
}

// List возвращает опубликованные публикации категории без текста. Пустая категория значит все.
func (s *Service) List(ctx context.Context, category string, limit, offset int) ([]*models.Article, error) {
	const op = "content.List"

	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.ListPublishedArticles(ctx, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, a := range items {
		a.Content = ""
	}
	return items, nil
}

// Categories справочник категорий.
func (s *Service) Categories(ctx context.Context) ([]models.CategoryInfo, error) {
	const op = "content.Categories"

	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cats, nil
}

// Document возвращает расшифрованный PDF публикации.
// Ошибка чтения из хранилища превращается в ErrNoDocument.
func (s *Service) Document(ctx context.Context, sub *models.Subscriber, slug string) ([]byte, error) {
	const op = "content.Document"

	a, err := s.article(ctx, op, slug)
	if err != nil {
		return nil, err
	}
	if err := gate(sub, a.RequiredPlan); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !a.HasDocument() {
		return nil, fmt.Errorf("%s: %w", op, ErrNoDocument)
	}

	data, err := s.blobs.Get(ctx, *a.DocumentName)
	if err != nil {
		s.log.Error("failed to read document",
			slog.String("slug", slug),
			slog.String("blob", *a.DocumentName),
			sl.Err(err),
		)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNoDocument, err)
	}
	return data, nil
}

// DocumentName имя файла в хранилище для новой загрузки.
func DocumentName(slug string) string {
	return fmt.Sprintf("articles/pdfs/%s-%s.pdf", slug, uuid.NewString())
}

// AttachDocument шифрует и сохраняет PDF, привязывает его к публикации
// и удаляет прежний файл. Возвращает имя нового файла.
func (s *Service) AttachDocument(ctx context.Context, slug string, data []byte) (string, error) {
	const op = "content.AttachDocument"

	if !bytes.HasPrefix(data, pdfMagic) {
		return "", fmt.Errorf("%s: %w", op, ErrNotPDF)
	}

	name := DocumentName(slug)
	if err := s.blobs.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	previous, err := s.repo.SetArticleDocument(ctx, slug, name)
	if err != nil {
		if derr := s.blobs.Delete(ctx, name); derr != nil {
			s.log.Warn("failed to remove orphan document", slog.String("blob", name), sl.Err(derr))
		}
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if previous != nil && *previous != "" && *previous != name {
		if err := s.blobs.Delete(ctx, *previous); err != nil {
			s.log.Warn("failed to remove previous document", slog.String("blob", *previous), sl.Err(err))
		}
	}
	s.log.Info("document attached", slog.String("slug", slug), slog.String("blob", name))
	return name, nil
}

// Lesson возвращает урок опубликованного курса, если sub может его открыть.
func (s *Service) Lesson(ctx context.Context, sub *models.Subscriber, courseSlug string, lessonID int64) (*models.Lesson, error) {
	const op = "content.Lesson"

	l, err := s.repo.GetLesson(ctx, courseSlug, lessonID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := gate(sub, l.RequiredPlan); err != nil {
		l.VideoID = nil
		return l, err
	}
	return l, nil
}

// Plans каталог планов по возрастанию уровня, кешируется.
func (s *Service) Plans(ctx context.Context) ([]*models.Plan, error) {
	const op = "content.Plans"

	var cached []*models.Plan
	found, err := s.cache.Get(ctx, cache.PlansKey, &cached)
	if err != nil {
		s.log.Warn("failed to read plans from cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, cache.PlansKey, plans, plansTTL); err != nil {
		s.log.Warn("failed to cache plans", sl.Err(err))
	}
	return plans, nil
}

// RecordVisit увеличивает счётчик уникальных посещений за день.
func (s *Service) RecordVisit(ctx context.Context, now time.Time) error {
	const op = "content.RecordVisit"

	if _, err := s.repo.IncrementDailyVisit(ctx, now.UTC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.metrics != nil {
		s.metrics.DailyVisitsProcessed.Inc()
	}
	return nil
}
