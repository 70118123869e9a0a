package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// ErrNoDefaultPrice у продукта нет цены по умолчанию.
var ErrNoDefaultPrice = errors.New("product has no default price")

type Client struct {
	api *client.API
}

// NewClient создаёт клиент Stripe с секретным ключом.
func NewClient(secretKey string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api}
}

// NewClientWithBackends создаёт клиент с явными backend-ами (используется в тестах).
func NewClientWithBackends(secretKey string, backends *stripe.Backends) *Client {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Client{api: api}
}

// CreateCheckoutSession создаёт сессию оплаты подписки по цене PriceID.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.UserUID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convertSession(s), nil
}

// GetCheckoutSession загружает сессию по идентификатору.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	const op = "paymentprovider.GetCheckoutSession"

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convertSession(s), nil
}

// GetSubscription загружает подписку и извлекает цену её первой позиции.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	const op = "paymentprovider.GetSubscription"

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convertSubscription(sub), nil
}

// DefaultPriceForProduct возвращает id цены по умолчанию для продукта prod_*.
func (c *Client) DefaultPriceForProduct(ctx context.Context, productID string) (string, error) {
	const op = "paymentprovider.DefaultPriceForProduct"

	params := &stripe.ProductParams{}
	params.Context = ctx
	p, err := c.api.Products.Get(productID, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if p.DefaultPrice == nil || p.DefaultPrice.ID == "" {
		return "", fmt.Errorf("%s: %s: %w", op, productID, ErrNoDefaultPrice)
	}
	return p.DefaultPrice.ID, nil
}

// CancelAtPeriodEnd помечает подписку к отмене в конце оплаченного периода.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	const op = "paymentprovider.CancelAtPeriodEnd"

	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func convertSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:                s.ID,
		ClientReferenceID: s.ClientReferenceID,
		AmountTotal:       s.AmountTotal,
		PaymentStatus:     string(s.PaymentStatus),
		URL:               s.URL,
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func convertSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{ID: sub.ID}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return out
	}
	price := sub.Items.Data[0].Price
	if price == nil {
		return out
	}
	out.PriceID = price.ID
	if price.Product != nil {
		out.ProductID = price.Product.ID
	}
	return out
}
