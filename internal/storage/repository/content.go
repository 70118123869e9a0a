package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

const articleSelect = `SELECT a.id, a.slug, a.title, a.category, a.summary, a.content, a.tags, a.video_url,
       a.status, a.document_name, a.created_at,
       p.id, p.name, p.external_price_ref, p.level
FROM articles a
LEFT JOIN plans p ON p.id = a.required_plan_id`

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	var tags string
	var video, doc sql.NullString
	var plan nullablePlan

	dest := append([]any{&a.ID, &a.Slug, &a.Title, &a.Category, &a.Summary, &a.Content, &tags, &video,
		&a.Status, &doc, &a.CreatedAt}, plan.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	a.Tags = splitTags(tags)
	if video.Valid {
		a.VideoURL = &video.String
	}
	if doc.Valid {
		a.DocumentName = &doc.String
	}
	a.RequiredPlan = plan.plan()
	return &a, nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// GetPublishedArticle возвращает опубликованную публикацию по slug.
func (s *Storage) GetPublishedArticle(ctx context.Context, slug string) (*models.Article, error) {
	const op = "storage.GetPublishedArticle"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	a, err := scanArticle(s.DB.QueryRowContext(ctx, articleSelect+`
WHERE a.slug = $1 AND a.status = 'published'`, slug))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return a, nil
}

// ListPublishedArticles возвращает опубликованные публикации, новые первыми.
// Пустая category означает все категории.
func (s *Storage) ListPublishedArticles(ctx context.Context, category string, limit, offset int) ([]*models.Article, error) {
	const op = "storage.ListPublishedArticles"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, articleSelect+`
WHERE a.status = 'published' AND ($1 = '' OR a.category = $1)
ORDER BY a.created_at DESC, a.id DESC
LIMIT $2 OFFSET $3`, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListCategories возвращает справочник категорий.
func (s *Storage) ListCategories(ctx context.Context) ([]models.CategoryInfo, error) {
	const op = "storage.ListCategories"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT slug, label FROM content_categories ORDER BY position, slug`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.CategoryInfo
	for rows.Next() {
		var c models.CategoryInfo
		if err := rows.Scan(&c.Slug, &c.Label); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SetArticleDocument привязывает к публикации файл и возвращает имя прежнего файла, если он был.
func (s *Storage) SetArticleDocument(ctx context.Context, slug, documentName string) (*string, error) {
	const op = "storage.SetArticleDocument"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	var previous sql.NullString
	err := s.DB.QueryRowContext(ctx, `UPDATE articles a
		SET document_name = $2, updated_at = NOW()
		FROM (SELECT id, document_name FROM articles WHERE slug = $1 FOR UPDATE) old
		WHERE a.id = old.id
		RETURNING old.document_name`, slug, documentName).Scan(&previous)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	if !previous.Valid {
		return nil, nil
	}
	return &previous.String, nil
}

// GetLesson возвращает урок опубликованного курса.
func (s *Storage) GetLesson(ctx context.Context, courseSlug string, lessonID int64) (*models.Lesson, error) {
	const op = "storage.GetLesson"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	var l models.Lesson
	var module, video, duration sql.NullString
	var plan nullablePlan
	dest := append([]any{&l.ID, &l.CourseID, &module, &l.Title, &l.Order, &video, &duration}, plan.dest()...)

	err := s.DB.QueryRowContext(ctx, `SELECT l.id, l.course_id, m.title, l.title, l.position, l.video_id, l.duration,
       p.id, p.name, p.external_price_ref, p.level
FROM lessons l
JOIN courses c ON c.id = l.course_id
LEFT JOIN course_modules m ON m.id = l.module_id
LEFT JOIN plans p ON p.id = l.required_plan_id
WHERE c.slug = $1 AND c.status = 'published' AND l.id = $2`, courseSlug, lessonID).Scan(dest...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	if module.Valid {
		l.ModuleTitle = &module.String
	}
	if video.Valid {
		l.VideoID = &video.String
	}
	if duration.Valid {
		l.Duration = &duration.String
	}
	l.RequiredPlan = plan.plan()
	return &l, nil
}

// IncrementDailyVisit атомарно увеличивает счётчик посещений за день и возвращает новое значение.
func (s *Storage) IncrementDailyVisit(ctx context.Context, day time.Time) (int64, error) {
	const op = "storage.IncrementDailyVisit"
	if err := ctxErr(ctx, op); err != nil {
		return 0, err
	}

	var count int64
	err := s.DB.QueryRowContext(ctx, `INSERT INTO daily_visits (date, count)
		VALUES ($1, 1)
		ON CONFLICT (date) DO UPDATE SET count = daily_visits.count + 1
		RETURNING count`, day.Format(time.DateOnly)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
