package models

import "time"

// Category тег типа публикации.
type Category string

// Категории публикаций.
const (
	CategoryArticle        Category = "artigo"
	CategoryEssay          Category = "ensaio"
	CategoryReview         Category = "resenha"
	CategoryRecommendation Category = "recomendacao"
	CategoryMultimedia     Category = "multimidia"
)

// CategoryInfo строка справочника content_categories.
type CategoryInfo struct {
	Slug  Category `json:"slug"`
	Label string   `json:"label"`
}

// Статусы публикаций.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Article публикация любой категории.
type Article struct {
	ID           int64     `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Category     Category  `json:"category"`
	Summary      string    `json:"summary"`
	Content      string    `json:"content,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	VideoURL     *string   `json:"video_url,omitempty"`
	Status       string    `json:"status"`
	RequiredPlan *Plan     `json:"required_plan,omitempty"`
	DocumentName *string   `json:"-"` // имя зашифрованного PDF в хранилище
	CreatedAt    time.Time `json:"created_at"`
}

// HasDocument сообщает, прикреплён ли к публикации PDF.
func (a *Article) HasDocument() bool {
	return a.DocumentName != nil && *a.DocumentName != ""
}

// Course курс, состоящий из уроков.
type Course struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Lesson урок курса.
type Lesson struct {
	ID           int64   `json:"id"`
	CourseID     int64   `json:"course_id"`
	ModuleTitle  *string `json:"module_title,omitempty"`
	Title        string  `json:"title"`
	Order        int     `json:"order"`
	VideoID      *string `json:"video_id,omitempty"`
	Duration     *string `json:"duration,omitempty"`
	RequiredPlan *Plan   `json:"required_plan,omitempty"`
}
