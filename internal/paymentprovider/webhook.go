package paymentprovider

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier создаёт верификатор с общим секретом endpoint-а.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// ParseEvent проверяет подпись над сырым телом запроса.
// Для checkout.session.completed дополнительно разбирает объект сессии.
func (v *WebhookVerifier) ParseEvent(payload []byte, sigHeader string) (*Event, error) {
	const op = "paymentprovider.ParseEvent"

	evt, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if len(payload) > 0 && !json.Valid(payload) {
			return nil, fmt.Errorf("%s: %w", op, ErrMalformedPayload)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}
	if evt.Data == nil {
		return nil, fmt.Errorf("%s: %w: empty data", op, ErrMalformedPayload)
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedPayload, err)
	}
	out.Session = convertSession(&s)
	return out, nil
}
