package list

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Plans(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func TestListHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("ok", func(t *testing.T) {
		svc := &ServiceMock{}
		svc.On("Plans", mock.Anything).Return([]*models.Plan{{ID: 1, Name: "Livre"}, {ID: 2, Name: "Mecenas", Level: 2}}, nil)

		rr := httptest.NewRecorder()
		New(log, svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/plans", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		plans := got["data"].(map[string]any)["plans"].([]any)
		assert.Len(t, plans, 2)
	})

	t.Run("error", func(t *testing.T) {
		svc := &ServiceMock{}
		svc.On("Plans", mock.Anything).Return(nil, errors.New("db down"))

		rr := httptest.NewRecorder()
		New(log, svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/plans", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
