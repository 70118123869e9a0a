package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/response"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

// ProfileLoader загружает профиль подписчика.
type ProfileLoader interface {
	GetOrCreateProfile(ctx context.Context, userUID string) (*models.Profile, error)
}

// SubscriberMiddleware загружает профиль аутентифицированного пользователя
// и кладёт *models.Subscriber в контекст. Анонимные запросы проходят без изменений.
func SubscriberMiddleware(profiles ProfileLoader, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SubscriberMiddleware"

			userUID := UserUIDFrom(r.Context())
			if userUID == "" {
				next.ServeHTTP(w, r)
				return
			}

			profile, err := profiles.GetOrCreateProfile(r.Context(), userUID)
			if err != nil {
				log.Error("failed to load subscriber profile",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("user_uid", userUID),
					sl.Err(err),
				)
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			username, _ := r.Context().Value(User).(string)
			sub := &models.Subscriber{UserUID: userUID, Username: username, Profile: profile}
			next.ServeHTTP(w, r.WithContext(WithSubscriber(r.Context(), sub)))
		})
	}
}
