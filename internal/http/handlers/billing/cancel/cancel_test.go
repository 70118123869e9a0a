package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/content-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/content-subscriptions/internal/services/billing"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Cancel(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}

func TestCancelHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := &ServiceMock{}
	handler := New(log, svc)

	tests := []struct {
		name        string
		method      string
		mockSetup   func()
		wantCode    int
		wantStatus  string
		wantMessage string
	}{
		{
			name:   "cancelled",
			method: http.MethodPost,
			mockSetup: func() {
				svc.On("Cancel", mock.Anything, "u1").Return(nil).Once()
			},
			wantCode:    http.StatusOK,
			wantStatus:  "success",
			wantMessage: "subscription will be cancelled at period end",
		},
		{
			name:   "no active subscription",
			method: http.MethodPost,
			mockSetup: func() {
				svc.On("Cancel", mock.Anything, "u1").Return(fmt.Errorf("billing.Cancel: %w", billing.ErrNoActiveSubscription)).Once()
			},
			wantCode:    http.StatusBadRequest,
			wantStatus:  "error",
			wantMessage: "no active subscription",
		},
		{
			name:   "provider error",
			method: http.MethodPost,
			mockSetup: func() {
				svc.On("Cancel", mock.Anything, "u1").Return(fmt.Errorf("%w: %w", billing.ErrProvider, errors.New("card_declined"))).Once()
			},
			wantCode:   http.StatusInternalServerError,
			wantStatus: "error",
		},
		{
			name:        "get is rejected",
			method:      http.MethodGet,
			mockSetup:   func() {},
			wantCode:    http.StatusMethodNotAllowed,
			wantStatus:  "error",
			wantMessage: "method not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.ExpectedCalls = nil
			svc.Calls = nil
			tt.mockSetup()

			req := httptest.NewRequest(tt.method, "/billing/cancel", nil)
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123")
			ctx = context.WithValue(ctx, middlewarectx.UserUID, "u1")
			req = req.WithContext(ctx)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			var got map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, tt.wantStatus, got["status"])
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got["message"])
			}
			if tt.method == http.MethodPost {
				svc.AssertNumberOfCalls(t, "Cancel", 1)
			} else {
				svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
			}
		})
	}
}
