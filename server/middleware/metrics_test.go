package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/teilomillet/mdconvert/server/metrics"
	"github.com/teilomillet/mdconvert/server/middleware"
)

func TestPrometheusMetrics(t *testing.T) {
	tests := []struct {
		name             string
		path             string
		expectedCode     int
		expectedEndpoint string
		expectedStatus   string
		expectedErrType  string
	}{
		{
			name:             "success request",
			path:             "/ok",
			expectedCode:     http.StatusOK,
			expectedEndpoint: "/ok",
			expectedStatus:   "200",
		},
		{
			name:             "error request",
			path:             "/fail",
			expectedCode:     http.StatusInternalServerError,
			expectedEndpoint: "/fail",
			expectedStatus:   "500",
			expectedErrType:  "server_error",
		},
		{
			name:             "client error request",
			path:             "/bad",
			expectedCode:     http.StatusBadRequest,
			expectedEndpoint: "/bad",
			expectedStatus:   "400",
			expectedErrType:  "client_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewMetrics()

			r := chi.NewRouter()
			r.Use(middleware.PrometheusMetrics(m))
			r.Get("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			r.Get("/fail", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
			r.Get("/bad", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) })

			server := httptest.NewServer(r)
			defer server.Close()

			resp, err := http.Get(server.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedCode, resp.StatusCode)

			requestCount := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.expectedEndpoint, tt.expectedStatus))
			assert.Equal(t, float64(1), requestCount)

			activeRequests := testutil.ToFloat64(m.ActiveRequests.WithLabelValues("http"))
			assert.Equal(t, float64(0), activeRequests)

			if tt.expectedErrType != "" {
				errorCount := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(tt.expectedErrType))
				assert.Equal(t, float64(1), errorCount)
			}
		})
	}
}

// TestPrometheusMetricsBoundedLabels checks that unknown paths share one label.
func TestPrometheusMetricsBoundedLabels(t *testing.T) {
	m := metrics.NewMetrics()
	handler := middleware.PrometheusMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/a", "/b", "/c"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "404")))
}
