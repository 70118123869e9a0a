// Package ledger хранит состояние подписки пользователя: текущий план,
// идентификатор подписки у провайдера, конец оплаченного периода и флаг отмены.
// Все изменения проходят через репозиторий, после чего сбрасывается кеш профиля
// и публикуется событие в брокер.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/content-subscriptions/internal/cache"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/storage"
)

// ErrFreePlanNotFound не найден ни план уровня 0, ни план с именем models.FreePlanName.
var ErrFreePlanNotFound = errors.New("free plan not found")

const profileTTL = 10 * time.Minute

type Repository interface {
	GetProfile(ctx context.Context, userUID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, userUID string, planID *int64) error
	ApplyPlanChange(ctx context.Context, userUID string, planID int64, externalSubscriptionID string, periodEnd *time.Time) error
	RequestCancellation(ctx context.Context, userUID string) error
	DowngradeToFree(ctx context.Context, userUID string, freePlanID int64) error
	DowngradeExpired(ctx context.Context, userUID string, freePlanID int64, now time.Time) (bool, error)
	FindPlanByLevel(ctx context.Context, level int) (*models.Plan, error)
	FindPlanByName(ctx context.Context, name string) (*models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
}

type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type Service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	log       *slog.Logger
}

// New создаёт Service.
func New(repo Repository, cache Cache, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
	}
}

// GetOrCreateProfile возвращает профиль пользователя. Если профиля нет,
// создаёт его с бесплатным планом (или без плана, если бесплатного нет).
func (s *Service) GetOrCreateProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "ledger.GetOrCreateProfile"
	key := cache.ProfileKey(userUID)

	var cached models.Profile
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read profile from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	profile, err := s.loadProfile(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profile, nil
}

// LoadProfile читает профиль из базы в обход кеша и обновляет запись в кеше.
// Используется там, где решение принимается по текущему состоянию подписки.
func (s *Service) LoadProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	const op = "ledger.LoadProfile"
	profile, err := s.loadProfile(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profile, nil
}

func (s *Service) loadProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, userUID)
	if errors.Is(err, storage.ErrNotFound) {
		profile, err = s.createProfile(ctx, userUID)
	}
	if err != nil {
		return nil, err
	}

	key := cache.ProfileKey(userUID)
	if err := s.cache.Set(ctx, key, profile, profileTTL); err != nil {
		s.log.Warn("failed to cache profile", slog.String("key", key), sl.Err(err))
	}
	return profile, nil
}

func (s *Service) createProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	var planID *int64
	free, err := s.ResolveFreePlan(ctx)
	switch {
	case err == nil:
		planID = &free.ID
	case errors.Is(err, ErrFreePlanNotFound):
		s.log.Warn("free plan missing, creating profile without plan", slog.String("user_uid", userUID))
	default:
		return nil, err
	}

	if err := s.repo.CreateProfile(ctx, userUID, planID); err != nil {
		return nil, err
	}
	s.log.Info("created subscriber profile", slog.String("user_uid", userUID))
	return s.repo.GetProfile(ctx, userUID)
}

// ResolveFreePlan ищет бесплатный план: сначала по уровню 0, затем по имени.
func (s *Service) ResolveFreePlan(ctx context.Context) (*models.Plan, error) {
	const op = "ledger.ResolveFreePlan"

	plan, err := s.repo.FindPlanByLevel(ctx, 0)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan, err = s.repo.FindPlanByName(ctx, models.FreePlanName)
	if err == nil {
		return plan, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrFreePlanNotFound)
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// ApplyPlanChange переводит пользователя на план planID с подпиской провайдера
// externalSubscriptionID до periodEnd и снимает флаг отмены.
func (s *Service) ApplyPlanChange(ctx context.Context, userUID string, planID int64, externalSubscriptionID string, periodEnd *time.Time) error {
	const op = "ledger.ApplyPlanChange"

	if err := s.repo.ApplyPlanChange(ctx, userUID, planID, externalSubscriptionID, periodEnd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userUID)

	evt := rabbitmq.Event{
		UserUID:                userUID,
		ExternalSubscriptionID: externalSubscriptionID,
		SubscriptionEnd:        periodEnd,
		OccurredAt:             time.Now().UTC(),
	}
	if plan, err := s.repo.GetPlan(ctx, planID); err == nil {
		evt.PlanName = plan.Name
	}
	s.publish(ctx, rabbitmq.RoutingActivated, evt)
	return nil
}

// RequestCancellation выставляет флаг отмены в конце периода. План не меняется.
func (s *Service) RequestCancellation(ctx context.Context, userUID string) error {
	const op = "ledger.RequestCancellation"

	if err := s.repo.RequestCancellation(ctx, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userUID)
	s.publish(ctx, rabbitmq.RoutingCancelRequested, rabbitmq.Event{
		UserUID:    userUID,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// DowngradeToFree переводит пользователя на бесплатный план безусловно.
func (s *Service) DowngradeToFree(ctx context.Context, userUID string, freePlanID int64) error {
	const op = "ledger.DowngradeToFree"

	if err := s.repo.DowngradeToFree(ctx, userUID, freePlanID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.afterDowngrade(ctx, userUID)
	return nil
}

// DowngradeExpired переводит на бесплатный план, только если период всё ещё истёк на момент now.
// false означает, что профиль продлили между выборкой и обновлением.
func (s *Service) DowngradeExpired(ctx context.Context, userUID string, freePlanID int64, now time.Time) (bool, error) {
	const op = "ledger.DowngradeExpired"

	done, err := s.repo.DowngradeExpired(ctx, userUID, freePlanID, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if done {
		s.afterDowngrade(ctx, userUID)
	}
	return done, nil
}

func (s *Service) afterDowngrade(ctx context.Context, userUID string) {
	s.invalidate(ctx, userUID)
	s.publish(ctx, rabbitmq.RoutingDowngraded, rabbitmq.Event{
		UserUID:    userUID,
		PlanName:   models.FreePlanName,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *Service) invalidate(ctx context.Context, userUID string) {
	key := cache.ProfileKey(userUID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate profile cache", slog.String("key", key), sl.Err(err))
	}
}

func (s *Service) publish(ctx context.Context, routingKey string, evt rabbitmq.Event) {
	if err := s.publisher.Publish(ctx, routingKey, evt); err != nil {
		s.log.Warn("failed to publish subscription event",
			slog.String("routing_key", routingKey),
			slog.String("user_uid", evt.UserUID),
			sl.Err(err),
		)
	}
}
