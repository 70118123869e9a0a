// Package paymentprovider адаптирует Stripe к типам платформы.
// Сервисы работают только с типами этого пакета и не видят stripe-go.
package paymentprovider

import (
	"errors"
	"time"
)

// PaymentStatusPaid статус оплаченной checkout-сессии.
const PaymentStatusPaid = "paid"

// EventCheckoutCompleted единственный тип события, который обрабатывает платформа.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

type CheckoutSession struct {
	ID                string
	ClientReferenceID string
	SubscriptionID    string
	AmountTotal       int64
	PaymentStatus     string
	URL               string
}

// Paid сообщает, что провайдер подтвердил оплату.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

type Subscription struct {
	ID               string
	PriceID          string
	ProductID        string
	CurrentPeriodEnd *time.Time
}

type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

type CheckoutRequest struct {
	PriceID    string
	UserUID    string
	SuccessURL string
	CancelURL  string
}
