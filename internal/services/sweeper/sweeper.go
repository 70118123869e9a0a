// Package sweeper переводит подписчиков с истёкшим платным периодом на бесплатный план.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/ledger"
)

type Repository interface {
	ListExpiredPaidProfiles(ctx context.Context, now time.Time) ([]*models.Profile, error)
}

type Ledger interface {
	ResolveFreePlan(ctx context.Context) (*models.Plan, error)
	DowngradeExpired(ctx context.Context, userUID string, freePlanID int64, now time.Time) (bool, error)
}

type Report struct {
	Downgraded int
	// Unresolved пользователи, оставленные без изменений, потому что бесплатный план не найден.
	Unresolved []string
	// Failed пользователи, для которых понижение завершилось ошибкой.
	Failed []string
}

// Service выполняет проход по истёкшим подпискам.
type Service struct {
	repo    Repository
	ledger  Ledger
	metrics *metrics.Sweeper
	log     *slog.Logger
	now     func() time.Time
}

// New создаёт Service. m может быть nil.
func New(repo Repository, l Ledger, m *metrics.Sweeper, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		ledger:  l,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Sweep понижает каждого подписчика с subscription_end < now и платным планом.
// Каждый подписчик обрабатывается в отдельной транзакции; ошибка по одному
// не останавливает проход. Ошибка возвращается только если не удалось получить список.
func (s *Service) Sweep(ctx context.Context) (*Report, error) {
	const op = "sweeper.Sweep"
	now := s.now()
	log := s.log.With(slog.String("op", op))

	expired, err := s.repo.ListExpiredPaidProfiles(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &Report{}
	defer s.observe(report)

	if len(expired) == 0 {
		log.Info("no expired subscriptions found")
		return report, nil
	}
	log.Info("found expired subscriptions", slog.Int("count", len(expired)))

	free, err := s.ledger.ResolveFreePlan(ctx)
	if errors.Is(err, ledger.ErrFreePlanNotFound) {
		for _, p := range expired {
			report.Unresolved = append(report.Unresolved, p.UserUID)
			log.Warn("cannot downgrade subscriber, free plan not found", slog.String("user_uid", p.UserUID))
		}
		return report, nil
	}
	if err != nil {
		log.Error("failed to resolve free plan", sl.Err(err))
		for _, p := range expired {
			report.Failed = append(report.Failed, p.UserUID)
		}
		return report, nil
	}

	for _, p := range expired {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, p.UserUID)
			continue
		}
		done, err := s.ledger.DowngradeExpired(ctx, p.UserUID, free.ID, now)
		if err != nil {
			report.Failed = append(report.Failed, p.UserUID)
			log.Error("failed to downgrade subscriber", slog.String("user_uid", p.UserUID), sl.Err(err))
			continue
		}
		if !done {
			log.Info("subscriber renewed before downgrade", slog.String("user_uid", p.UserUID))
			continue
		}
		report.Downgraded++
		log.Info("downgraded subscriber to free plan",
			slog.String("user_uid", p.UserUID),
			slog.String("from_plan", p.CurrentPlan.Name),
		)
	}
	return report, nil
}

func (s *Service) observe(r *Report) {
	if s.metrics == nil {
		return
	}
	s.metrics.Downgrades.Add(float64(r.Downgraded))
	s.metrics.Unresolved.Add(float64(len(r.Unresolved)))
	s.metrics.Failed.Add(float64(len(r.Failed)))
	s.metrics.LastRunUnix.SetToCurrentTime()
}
