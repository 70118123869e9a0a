// Package middlewarectx содержит HTTP middleware платформы и ключи контекста запроса.
package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID ключ для uid пользователя в контексте
	UserUID Key = "user_uid"
	// User ключ для имени пользователя в контексте
	User Key = "username"
	// Role ключ для роли пользователя в контексте
	Role Key = "role"
	// Subscriber ключ для *models.Subscriber в контексте
	Subscriber Key = "subscriber"
)

// UserUIDFrom возвращает uid аутентифицированного пользователя или "".
func UserUIDFrom(ctx context.Context) string {
	uid, _ := ctx.Value(UserUID).(string)
	return uid
}

// SubscriberFrom возвращает подписчика запроса; nil для анонимного посетителя.
func SubscriberFrom(ctx context.Context) *models.Subscriber {
	sub, _ := ctx.Value(Subscriber).(*models.Subscriber)
	return sub
}

// WithSubscriber кладёт подписчика в контекст.
func WithSubscriber(ctx context.Context, sub *models.Subscriber) context.Context {
	return context.WithValue(ctx, Subscriber, sub)
}
