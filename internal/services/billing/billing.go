// Package billing сверяет состояние подписок с событиями платёжного провайдера.
//
// Завершение оплаты приходит двумя путями: webhook (основной, подписанный) и
// редирект пользователя со страницы оплаты (необязательный, только для статуса paid).
// Оба пути сходятся в HandleCheckoutCompleted. Повторная доставка безопасна:
// смена плана идемпотентна, а запись о платеже защищена уникальным индексом
// по идентификатору checkout-сессии.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/content-subscriptions/internal/config"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/metrics"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/paymentprovider"
	"github.com/magabrotheeeer/content-subscriptions/internal/storage"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanNotConfigured    = errors.New("plan has no price configured")
	ErrProductWithoutPrice  = errors.New("product has no default price")
	ErrUserNotFound         = errors.New("user not found")
	ErrPlanNotResolved      = errors.New("plan not resolved")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrProvider             = errors.New("payment provider error")
)

const productPrefix = "prod_"

// Источники события для метрик.
const (
	SourceWebhook  = "webhook"
	SourceRedirect = "redirect"
)

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req paymentprovider.CheckoutRequest) (*paymentprovider.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*paymentprovider.CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*paymentprovider.Subscription, error)
	DefaultPriceForProduct(ctx context.Context, productID string) (string, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

type Repository interface {
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	FindPlanByPriceRef(ctx context.Context, ref string) (*models.Plan, error)
	FindPlanByName(ctx context.Context, name string) (*models.Plan, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	RecordPayment(ctx context.Context, rec *models.PaymentRecord) (bool, error)
}

type Ledger interface {
	LoadProfile(ctx context.Context, userUID string) (*models.Profile, error)
	ApplyPlanChange(ctx context.Context, userUID string, planID int64, externalSubscriptionID string, periodEnd *time.Time) error
	RequestCancellation(ctx context.Context, userUID string) error
}

// Service сверка оплат, создание checkout-сессий и отмена подписок.
type Service struct {
	provider Provider
	repo     Repository
	ledger   Ledger
	metrics  *metrics.Metrics
	log      *slog.Logger

	successURL    string
	cancelURL     string
	priceFallback map[string]string
}

// New создаёт Service. m может быть nil.
func New(provider Provider, repo Repository, ledger Ledger, cfg config.Billing, baseURL string, m *metrics.Metrics, log *slog.Logger) *Service {
	base := strings.TrimRight(baseURL, "/")
	return &Service{
		provider:      provider,
		repo:          repo,
		ledger:        ledger,
		metrics:       m,
		log:           log,
		successURL:    base + cfg.SuccessPath + "?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:     base + cfg.CancelPath,
		priceFallback: cfg.PriceFallback,
	}
}

type Result struct {
	SessionID string `json:"session_id"`
	PlanName  string `json:"plan_name"`
	// Recorded false означает повторную доставку: платёж уже был записан.
	Recorded bool `json:"recorded"`
	Paid     bool `json:"paid"`
}

// CreateCheckout создаёт checkout-сессию для плана и возвращает URL оплаты.
func (s *Service) CreateCheckout(ctx context.Context, userUID string, planID int64) (string, error) {
	const op = "billing.CreateCheckout"

	plan, err := s.repo.GetPlan(ctx, planID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, ErrPlanNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	priceID := plan.PriceRef()
	if priceID == "" {
		return "", fmt.Errorf("%s: %s: %w", op, plan.Name, ErrPlanNotConfigured)
	}
	if strings.HasPrefix(priceID, productPrefix) {
		priceID, err = s.provider.DefaultPriceForProduct(ctx, priceID)
		if errors.Is(err, paymentprovider.ErrNoDefaultPrice) {
			return "", fmt.Errorf("%s: %w", op, ErrProductWithoutPrice)
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutRequest{
		PriceID:    priceID,
		UserUID:    userUID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
	}

	s.log.Info("checkout session created",
		slog.String("user_uid", userUID),
		slog.String("plan", plan.Name),
		slog.String("session_id", session.ID),
	)
	return session.URL, nil
}

// HandleEvent обрабатывает проверенное событие webhook. События других типов игнорируются.
func (s *Service) HandleEvent(ctx context.Context, evt *paymentprovider.Event) (*Result, error) {
	const op = "billing.HandleEvent"

	if evt.Type != paymentprovider.EventCheckoutCompleted || evt.Session == nil {
		s.metrics.BillingEvent(SourceWebhook, metrics.OutcomeIgnored)
		s.log.Debug("ignoring webhook event", slog.String("type", evt.Type), slog.String("event_id", evt.ID))
		return nil, nil
	}

	res, err := s.HandleCheckoutCompleted(ctx, SourceWebhook, evt.Session)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ConfirmRedirect загружает сессию по id из редиректа и сверяет её, если она оплачена.
// Неоплаченная сессия не меняет состояние.
func (s *Service) ConfirmRedirect(ctx context.Context, sessionID string) (*Result, error) {
	const op = "billing.ConfirmRedirect"

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
	}
	if !session.Paid() {
		s.metrics.BillingEvent(SourceRedirect, metrics.OutcomeIgnored)
		return &Result{SessionID: session.ID, Paid: false}, nil
	}

	res, err := s.HandleCheckoutCompleted(ctx, SourceRedirect, session)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// HandleCheckoutCompleted применяет оплаченную сессию: находит пользователя и план,
// меняет план в профиле и записывает платёж не более одного раза.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, source string, session *paymentprovider.CheckoutSession) (*Result, error) {
	const op = "billing.HandleCheckoutCompleted"
	log := s.log.With(
		slog.String("op", op),
		slog.String("source", source),
		slog.String("session_id", session.ID),
	)

	if session.ClientReferenceID == "" {
		s.metrics.BillingEvent(source, metrics.OutcomeMiss)
		log.Warn("checkout session without client reference")
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if _, err := s.repo.GetUser(ctx, session.ClientReferenceID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.BillingEvent(source, metrics.OutcomeMiss)
			log.Warn("checkout session references unknown user", slog.String("user_uid", session.ClientReferenceID))
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		s.metrics.BillingEvent(source, metrics.OutcomeError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	userUID := session.ClientReferenceID

	if session.SubscriptionID == "" {
		s.metrics.BillingEvent(source, metrics.OutcomeMiss)
		log.Warn("checkout session without subscription", slog.String("user_uid", userUID))
		return nil, fmt.Errorf("%s: %w", op, ErrPlanNotResolved)
	}
	sub, err := s.provider.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		s.metrics.BillingEvent(source, metrics.OutcomeError)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
	}

	plan, err := s.resolvePlan(ctx, sub)
	if err != nil {
		if errors.Is(err, ErrPlanNotResolved) {
			s.metrics.BillingEvent(source, metrics.OutcomeMiss)
			log.Warn("no plan matches subscription price",
				slog.String("user_uid", userUID),
				slog.String("price_id", sub.PriceID),
				slog.String("product_id", sub.ProductID),
			)
		} else {
			s.metrics.BillingEvent(source, metrics.OutcomeError)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.ledger.ApplyPlanChange(ctx, userUID, plan.ID, sub.ID, sub.CurrentPeriodEnd); err != nil {
		s.metrics.BillingEvent(source, metrics.OutcomeError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	recorded, err := s.repo.RecordPayment(ctx, &models.PaymentRecord{
		UserUID:               userUID,
		Amount:                session.AmountTotal,
		Status:                session.PaymentStatus,
		ExternalTransactionID: session.ID,
		PlanName:              plan.Name,
	})
	if err != nil {
		s.metrics.BillingEvent(source, metrics.OutcomeError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if recorded {
		s.metrics.BillingEvent(source, metrics.OutcomeApplied)
		log.Info("subscription activated", slog.String("user_uid", userUID), slog.String("plan", plan.Name))
	} else {
		s.metrics.BillingEvent(source, metrics.OutcomeDuplicate)
		log.Info("payment already recorded", slog.String("user_uid", userUID))
	}

	return &Result{
		SessionID: session.ID,
		PlanName:  plan.Name,
		Recorded:  recorded,
		Paid:      session.Paid(),
	}, nil
}

// resolvePlan ищет план по цене, затем по продукту, затем по таблице соответствий из конфига.
func (s *Service) resolvePlan(ctx context.Context, sub *paymentprovider.Subscription) (*models.Plan, error) {
	for _, ref := range []string{sub.PriceID, sub.ProductID} {
		if ref == "" {
			continue
		}
		plan, err := s.repo.FindPlanByPriceRef(ctx, ref)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	name, ok := s.fallbackName(sub.PriceID)
	if !ok {
		return nil, ErrPlanNotResolved
	}
	plan, err := s.repo.FindPlanByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPlanNotResolved
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) fallbackName(priceID string) (string, bool) {
	if priceID == "" {
		return "", false
	}
	if name, ok := s.priceFallback[priceID]; ok {
		return name, true
	}
	for ref, name := range s.priceFallback {
		if strings.EqualFold(ref, priceID) {
			return name, true
		}
	}
	return "", false
}

// Cancel отменяет подписку в конце оплаченного периода. Флаг в профиле
// выставляется только после успешного ответа провайдера.
func (s *Service) Cancel(ctx context.Context, userUID string) error {
	const op = "billing.Cancel"

	profile, err := s.ledger.LoadProfile(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !profile.HasExternalSubscription() {
		return fmt.Errorf("%s: %w", op, ErrNoActiveSubscription)
	}

	if err := s.provider.CancelAtPeriodEnd(ctx, *profile.ExternalSubscriptionID); err != nil {
		s.log.Error("provider rejected cancellation",
			slog.String("user_uid", userUID),
			slog.String("subscription_id", *profile.ExternalSubscriptionID),
			sl.Err(err),
		)
		return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
	}

	if err := s.ledger.RequestCancellation(ctx, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("subscription cancellation requested", slog.String("user_uid", userUID))
	return nil
}
