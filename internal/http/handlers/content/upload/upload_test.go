package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/content-subscriptions/internal/services/content"
)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) AttachDocument(ctx context.Context, slug string, data []byte) (string, error) {
	args := m.Called(ctx, slug, data)
	return args.String(0), args.Error(1)
}

var pdf = []byte("%PDF-1.7 body")

func withSlug(req *http.Request, slug string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slug", slug)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
	return req.WithContext(ctx)
}

func rawRequest(body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/admin/content/guide/pdf", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/pdf")
	return withSlug(req, "guide")
}

func multipartRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(FormField, "guide.pdf")
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/content/guide/pdf", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withSlug(req, "guide")
}

func TestUploadHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := &ServiceMock{}
	handler := New(log, svc, 1024)

	tests := []struct {
		name      string
		req       func(t *testing.T) *http.Request
		mockSetup func()
		wantCode  int
		wantError string
	}{
		{
			name: "raw body",
			req:  func(*testing.T) *http.Request { return rawRequest(pdf) },
			mockSetup: func() {
				svc.On("AttachDocument", mock.Anything, "guide", pdf).Return("articles/pdfs/guide-1.pdf", nil).Once()
			},
			wantCode: http.StatusCreated,
		},
		{
			name: "multipart",
			req:  func(t *testing.T) *http.Request { return multipartRequest(t, pdf) },
			mockSetup: func() {
				svc.On("AttachDocument", mock.Anything, "guide", pdf).Return("articles/pdfs/guide-2.pdf", nil).Once()
			},
			wantCode: http.StatusCreated,
		},
		{
			name: "not a pdf",
			req:  func(*testing.T) *http.Request { return rawRequest([]byte("hello")) },
			mockSetup: func() {
				svc.On("AttachDocument", mock.Anything, "guide", []byte("hello")).
					Return("", fmt.Errorf("content.AttachDocument: %w", content.ErrNotPDF)).Once()
			},
			wantCode:  http.StatusBadRequest,
			wantError: "file is not a pdf",
		},
		{
			name: "unknown article",
			req:  func(*testing.T) *http.Request { return rawRequest(pdf) },
			mockSetup: func() {
				svc.On("AttachDocument", mock.Anything, "guide", pdf).Return("", content.ErrNotFound).Once()
			},
			wantCode: http.StatusNotFound,
		},
		{
			name:      "empty body",
			req:       func(*testing.T) *http.Request { return rawRequest(nil) },
			mockSetup: func() {},
			wantCode:  http.StatusBadRequest,
			wantError: "empty file",
		},
		{
			name:      "too large",
			req:       func(*testing.T) *http.Request { return rawRequest(bytes.Repeat([]byte("a"), 2048)) },
			mockSetup: func() {},
			wantCode:  http.StatusRequestEntityTooLarge,
		},
		{
			name: "storage failure",
			req:  func(*testing.T) *http.Request { return rawRequest(pdf) },
			mockSetup: func() {
				svc.On("AttachDocument", mock.Anything, "guide", pdf).Return("", errors.New("s3 down")).Once()
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.ExpectedCalls = nil
			svc.Calls = nil
			tt.mockSetup()

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, tt.req(t))

			assert.Equal(t, tt.wantCode, rr.Code)
			var got map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}
			if tt.wantCode == http.StatusCreated {
				assert.Equal(t, "guide", got["data"].(map[string]any)["slug"])
			}
			svc.AssertExpectations(t)
		})
	}
}
