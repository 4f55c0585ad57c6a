package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/errors"
	"github.com/teilomillet/mdconvert/server/metrics"
	"github.com/teilomillet/mdconvert/server/middleware"
	"go.uber.org/zap/zaptest"
)

func testRateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:  true,
		Requests: 10,
		Window:   time.Minute,
		Burst:    10,
		IdleTTL:  10 * time.Minute,
	}
}

func TestRateLimitMetrics(t *testing.T) {
	m := metrics.NewMetrics()
	limiter := middleware.NewVisitorLimiter(testRateLimitConfig())

	handler := middleware.RateLimit(limiter, m, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	testIP := "127.0.0.1"

	// Make 11 requests (1 more than the burst)
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest("POST", "/convert", nil)
		req.RemoteAddr = testIP + ":1234"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if i < 10 {
			assert.Equal(t, http.StatusOK, rr.Code, "request %d", i)
			continue
		}

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "6", rr.Header().Get("Retry-After"))

		var body errors.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, errors.MsgRateLimited, body.Error)

		rateLimitCount := testutil.ToFloat64(m.RateLimitHits.WithLabelValues("/convert"))
		assert.Equal(t, float64(1), rateLimitCount)
	}

	// A different client still has its own bucket.
	req := httptest.NewRequest("POST", "/convert", nil)
	req.RemoteAddr = "10.0.0.2:9999"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimitSkipsPreflight(t *testing.T) {
	cfg := testRateLimitConfig()
	cfg.Burst = 1
	limiter := middleware.NewVisitorLimiter(cfg)

	handler := middleware.RateLimit(limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/convert", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/convert", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAllowAll(t *testing.T) {
	limiter := middleware.NewLimiter(config.RateLimitConfig{Enabled: false})
	_, ok := limiter.(middleware.AllowAll)
	require.True(t, ok)

	handler := middleware.RateLimit(limiter, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 100; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("POST", "/convert", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestNewLimiterEnabled(t *testing.T) {
	limiter := middleware.NewLimiter(testRateLimitConfig())
	_, ok := limiter.(*middleware.VisitorLimiter)
	assert.True(t, ok)
}
