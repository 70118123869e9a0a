package middlewarectx_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/content-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("secret", time.Hour)
	valid, err := maker.GenerateToken("uid-1", "ana", "user")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
		wantUID        string
	}{
		{
			name:           "anonymous passes through",
			authHeader:     "",
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
		{
			name:           "invalid Authorization header prefix",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer garbage",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "valid token",
			authHeader:     "Bearer " + valid,
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
			wantUID:        "uid-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			var gotUID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				gotUID = middlewarectx.UserUIDFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			middlewarectx.JWTMiddleware(maker, newNoopLogger())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantUID, gotUID)
		})
	}
}

func TestRequireAuthAndRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	withUser := func(role string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		ctx := context.WithValue(req.Context(), middlewarectx.UserUID, "uid-1")
		ctx = context.WithValue(ctx, middlewarectx.Role, role)
		return req.WithContext(ctx)
	}

	tests := []struct {
		name    string
		handler http.Handler
		req     *http.Request
		want    int
	}{
		{"auth anonymous", middlewarectx.RequireAuth(ok), httptest.NewRequest(http.MethodPost, "/", nil), http.StatusUnauthorized},
		{"auth user", middlewarectx.RequireAuth(ok), withUser(models.RoleUser), http.StatusNoContent},
		{"role anonymous", middlewarectx.RequireRole(models.RoleAdmin)(ok), httptest.NewRequest(http.MethodPost, "/", nil), http.StatusUnauthorized},
		{"role mismatch", middlewarectx.RequireRole(models.RoleAdmin)(ok), withUser(models.RoleUser), http.StatusForbidden},
		{"role admin", middlewarectx.RequireRole(models.RoleAdmin)(ok), withUser(models.RoleAdmin), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

type ProfileLoaderMock struct{ mock.Mock }

func (m *ProfileLoaderMock) GetOrCreateProfile(ctx context.Context, userUID string) (*models.Profile, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func TestSubscriberMiddleware(t *testing.T) {
	profile := &models.Profile{UserUID: "uid-1", CurrentPlan: &models.Plan{ID: 2, Name: "Mecenas", Level: 2}}

	t.Run("anonymous", func(t *testing.T) {
		loader := &ProfileLoaderMock{}
		var sub *models.Subscriber
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			sub = middlewarectx.SubscriberFrom(r.Context())
		})

		rec := httptest.NewRecorder()
		middlewarectx.SubscriberMiddleware(loader, newNoopLogger())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Nil(t, sub)
		loader.AssertNotCalled(t, "GetOrCreateProfile", mock.Anything, mock.Anything)
	})

	t.Run("authenticated", func(t *testing.T) {
		loader := &ProfileLoaderMock{}
		loader.On("GetOrCreateProfile", mock.Anything, "uid-1").Return(profile, nil)
		var sub *models.Subscriber
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			sub = middlewarectx.SubscriberFrom(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "uid-1"))
		rec := httptest.NewRecorder()
		middlewarectx.SubscriberMiddleware(loader, newNoopLogger())(next).ServeHTTP(rec, req)

		require.NotNil(t, sub)
		assert.Equal(t, 2, sub.Profile.Level())
	})

	t.Run("profile load error", func(t *testing.T) {
		loader := &ProfileLoaderMock{}
		loader.On("GetOrCreateProfile", mock.Anything, "uid-1").Return(nil, errors.New("db down"))
		called := false
		next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "uid-1"))
		rec := httptest.NewRecorder()
		middlewarectx.SubscriberMiddleware(loader, newNoopLogger())(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, called)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	h := middlewarectx.RateLimitMiddleware(limiter, newNoopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

type VisitRecorderMock struct{ mock.Mock }

func (m *VisitRecorderMock) RecordVisit(ctx context.Context, now time.Time) error {
	return m.Called(ctx, now).Error(0)
}

func TestDailyVisitMiddleware(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("first visit counted and cookie set", func(t *testing.T) {
		rec := &VisitRecorderMock{}
		rec.On("RecordVisit", mock.Anything, now).Return(nil).Once()

		w := httptest.NewRecorder()
		middlewarectx.DailyVisitMiddleware(rec, newNoopLogger(), clock)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		rec.AssertExpectations(t)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "2026-10-17", cookies[0].Value)
	})

	t.Run("same day cookie not counted", func(t *testing.T) {
		rec := &VisitRecorderMock{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: middlewarectx.VisitCookie, Value: "2026-10-17"})

		w := httptest.NewRecorder()
		middlewarectx.DailyVisitMiddleware(rec, newNoopLogger(), clock)(next).ServeHTTP(w, req)

		rec.AssertNotCalled(t, "RecordVisit", mock.Anything, mock.Anything)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("yesterday cookie counted again", func(t *testing.T) {
		rec := &VisitRecorderMock{}
		rec.On("RecordVisit", mock.Anything, now).Return(nil).Once()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: middlewarectx.VisitCookie, Value: "2026-10-16"})

		middlewarectx.DailyVisitMiddleware(rec, newNoopLogger(), clock)(next).ServeHTTP(httptest.NewRecorder(), req)
		rec.AssertExpectations(t)
	})

	t.Run("recorder error does not block request", func(t *testing.T) {
		rec := &VisitRecorderMock{}
		rec.On("RecordVisit", mock.Anything, now).Return(errors.New("db down"))

		w := httptest.NewRecorder()
		middlewarectx.DailyVisitMiddleware(rec, newNoopLogger(), clock)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})
}
