package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 0)

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow())
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	handler := RateLimit(NewLimiter(0.001, 2))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/orders", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
