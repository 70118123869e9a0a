// Package platform собирает HTTP API платформы подписок на контент.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/content-subscriptions/internal/app/infra"
	"github.com/magabrotheeeer/content-subscriptions/internal/blobstore"
	"github.com/magabrotheeeer/content-subscriptions/internal/config"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/content-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/content-subscriptions/internal/paymentprovider"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/billing"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/content"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/ledger"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/users"
)

const shutdownTimeout = 15 * time.Second

// Ограничение на создание checkout-сессий и отмены: 5 запросов в секунду, всплеск 10.
const (
	billingRateLimit = rate.Limit(5)
	billingRateBurst = 10
)

type App struct {
	server *http.Server
	logger *slog.Logger
	deps   *infra.Deps
}

// New поднимает зависимости и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "platform.New"

	deps, err := infra.Open(ctx, cfg, infra.Options{Migrate: true}, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	blobs, err := newBlobStore(ctx, cfg.BlobStorage, m, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	ledgerService := ledger.New(deps.Storage, deps.Cache, deps.Publisher, logger)
	services := Services{
		Users:    users.New(deps.Storage, jwtMaker, logger),
		Ledger:   ledgerService,
		Billing:  billing.New(paymentprovider.NewClient(cfg.StripeSecretKey), deps.Storage, ledgerService, cfg.Billing, cfg.BaseURL, m, logger),
		Content:  content.New(deps.Storage, blobs, deps.Cache, m, logger),
		Verifier: paymentprovider.NewWebhookVerifier(cfg.StripeWebhookSecret),
		Tokens:   jwtMaker,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services, RouteOptions{
		Registry: reg,
		Metrics:  m,
		Limiter:  rate.NewLimiter(billingRateLimit, billingRateBurst),
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		deps:   deps,
	}, nil
}

func newBlobStore(ctx context.Context, cfg config.BlobStorage, m *metrics.Metrics, logger *slog.Logger) (*blobstore.Store, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}

	var backend blobstore.Backend
	switch cfg.Backend {
	case "s3":
		backend, err = blobstore.NewS3Backend(ctx, cfg)
	case "fs", "":
		backend, err = blobstore.NewFileSystem(cfg.MediaRoot)
	default:
		return nil, fmt.Errorf("unknown blob storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("blob storage ready", slog.String("backend", cfg.Backend))

	return blobstore.NewStore(backend, key, logger, m.DecryptFallbacks)
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.deps.Close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.deps.Close()
		return err
	}
}
