package platform

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/billing/cancel"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/billing/cancelled"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/billing/confirm"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/content/article"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/content/categories"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/content/document"
	contentlist "github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/content/list"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/content/lesson"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/content/upload"
	planlist "github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/plans/list"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/handlers/subscription/me"
	"github.com/magabrotheeeer/content-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/content-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

type UserService interface {
	register.Service
	login.Service
}

type BillingService interface {
	checkout.Service
	confirm.Service
	cancel.Service
	webhook.Service
}

type ContentService interface {
	article.Service
	contentlist.Service
	categories.Service
	document.Service
	lesson.Service
	upload.Service
	planlist.Service
	middlewarectx.VisitRecorder
}

type Services struct {
	Users    UserService
	Ledger   middlewarectx.ProfileLoader
	Billing  BillingService
	Content  ContentService
	Verifier webhook.Verifier
	Tokens   middlewarectx.TokenParser
}

type RouteOptions struct {
	Registry       *prometheus.Registry
	Metrics        *metrics.Metrics
	Limiter        *rate.Limiter
	UploadMaxBytes int64
	Now            func() time.Time
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, opts RouteOptions) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		opts.Metrics.HTTPMiddleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.DailyVisitMiddleware(svc.Content, logger, opts.Now))

		// Открытые конечные точки
		r.Post("/register", register.New(logger, svc.Users).ServeHTTP)
		r.Post("/login", login.New(logger, svc.Users).ServeHTTP)
		r.Get("/plans", planlist.New(logger, svc.Content).ServeHTTP)
		r.Get("/billing/success", confirm.New(logger, svc.Billing).ServeHTTP)
		r.Get("/billing/cancelled", cancelled.New().ServeHTTP)

		// Webhook без аутентификации, проверяется подпись
		r.Post("/billing/webhook", webhook.New(logger, svc.Verifier, svc.Billing, opts.Metrics).ServeHTTP)

		// Анонимный доступ допускается, токен проверяется, если передан
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Tokens, logger))
			r.Use(middlewarectx.SubscriberMiddleware(svc.Ledger, logger))

			r.Get("/content", contentlist.New(logger, svc.Content).ServeHTTP)
			r.Get("/content/categories", categories.New(logger, svc.Content).ServeHTTP)
			r.Get("/content/{slug}", article.New(logger, svc.Content).ServeHTTP)
			r.Get("/content/{slug}/pdf", document.New(logger, svc.Content).ServeHTTP)
			r.Get("/courses/{slug}/lessons/{lessonID}", lesson.New(logger, svc.Content).ServeHTTP)

			// Только для аутентифицированных
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAuth)
				r.Get("/me/subscription", me.New().ServeHTTP)

				r.Group(func(r chi.Router) {
					r.Use(middlewarectx.RateLimitMiddleware(opts.Limiter, logger))
					r.Post("/billing/checkout/{planID}", checkout.New(logger, svc.Billing).ServeHTTP)
					r.Handle("/billing/cancel", cancel.New(logger, svc.Billing))
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(models.RoleAdmin))
				r.Post("/admin/content/{slug}/pdf", upload.New(logger, svc.Content, opts.UploadMaxBytes).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
