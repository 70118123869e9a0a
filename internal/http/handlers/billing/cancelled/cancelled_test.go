package cancelled

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelledHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	New().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/billing/cancelled", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "checkout cancelled")
}
