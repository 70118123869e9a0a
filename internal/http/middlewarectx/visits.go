package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/magabrotheeeer/content-subscriptions/internal/lib/sl"
)

// VisitCookie cookie, которой отмечается уже посчитанное за день посещение.
const VisitCookie = "daily_visit"

// VisitRecorder увеличивает счётчик посещений.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, now time.Time) error
}

// DailyVisitMiddleware считает первое посещение за сутки (UTC) для каждого браузера.
// Ошибка записи только логируется, запрос обрабатывается дальше.
func DailyVisitMiddleware(recorder VisitRecorder, log *slog.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := now().UTC()
			today := t.Format(time.DateOnly)

			if c, err := r.Cookie(VisitCookie); err != nil || c.Value != today {
				if err := recorder.RecordVisit(r.Context(), t); err != nil {
					log.Warn("failed to record daily visit", sl.Err(err))
				} else {
					midnight := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
					http.SetCookie(w, &http.Cookie{
						Name:     VisitCookie,
						Value:    today,
						Path:     "/",
						Expires:  midnight,
						HttpOnly: true,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
