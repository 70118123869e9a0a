// Package scheduler запускает проверку истёкших подписок: один раз или по cron-расписанию.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/content-subscriptions/internal/app/infra"
	"github.com/magabrotheeeer/content-subscriptions/internal/config"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/ledger"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/sweeper"
)

const metricsShutdownTimeout = 5 * time.Second

type Sweeper interface {
	Sweep(ctx context.Context) (*sweeper.Report, error)
}

type App struct {
	sweeper  Sweeper
	schedule string
	logger   *slog.Logger
	deps     *infra.Deps

	registry    *prometheus.Registry
	metricsAddr string

	// проходы не пересекаются, даже если предыдущий затянулся
	mu sync.Mutex
}

// New поднимает зависимости и собирает сервис понижения подписок.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "scheduler.New"

	deps, err := infra.Open(ctx, cfg, infra.Options{}, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSweeper(reg)

	ledgerService := ledger.New(deps.Storage, deps.Cache, deps.Publisher, logger)
	app := NewWithSweeper(sweeper.New(deps.Storage, ledgerService, m, logger), cfg.Schedule, logger).
		WithMetrics(reg, cfg.MetricsAddress)
	app.deps = deps
	return app, nil
}

// NewWithSweeper собирает App вокруг готового Sweeper.
func NewWithSweeper(s Sweeper, schedule string, logger *slog.Logger) *App {
	return &App{
		sweeper:  s,
		schedule: schedule,
		logger:   logger,
	}
}

// WithMetrics задаёт реестр метрик и адрес, на котором Run отдаёт /metrics.
// Пустой addr отключает listener.
func (a *App) WithMetrics(reg *prometheus.Registry, addr string) *App {
	a.registry = reg
	a.metricsAddr = addr
	return a
}

// MetricsHandler отдаёт метрики процесса в формате Prometheus.
func (a *App) MetricsHandler() http.Handler {
	if a.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// RunOnce выполняет один проход и пишет итог в лог.
// Пользователи, которых не удалось понизить, не считаются ошибкой прохода.
func (a *App) RunOnce(ctx context.Context) (*sweeper.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	report, err := a.sweeper.Sweep(ctx)
	if err != nil {
		a.logger.Error("subscription sweep failed", sl.Err(err))
		return nil, err
	}

	a.logger.Info("subscription sweep finished",
		slog.Int("downgraded", report.Downgraded),
		slog.Int("unresolved", len(report.Unresolved)),
		slog.Int("failed", len(report.Failed)),
	)
	for _, uid := range report.Unresolved {
		a.logger.Warn("free plan not found, subscriber left unchanged", slog.String("user_uid", uid))
	}
	for _, uid := range report.Failed {
		a.logger.Warn("subscriber downgrade failed", slog.String("user_uid", uid))
	}
	return report, nil
}

// Run запускает проход по расписанию до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	const op = "scheduler.Run"

	c := cron.New()
	if _, err := c.AddFunc(a.schedule, func() {
		_, _ = a.RunOnce(ctx)
	}); err != nil {
		a.Close()
		return fmt.Errorf("%s: invalid schedule %q: %w", op, a.schedule, err)
	}

	srv := a.startMetricsServer()

	c.Start()
	a.logger.Info("scheduler started", slog.String("schedule", a.schedule))

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")
	<-c.Stop().Done()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to stop metrics server", sl.Err(err))
		}
		cancel()
	}
	a.Close()
	return nil
}

func (a *App) startMetricsServer() *http.Server {
	if a.metricsAddr == "" || a.registry == nil {
		return nil
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", a.MetricsHandler())
	srv := &http.Server{
		Addr:              a.metricsAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", sl.Err(err))
		}
	}()
	return srv
}

// Close закрывает соединения, открытые в New.
func (a *App) Close() {
	if a.deps != nil {
		a.deps.Close()
	}
}
