package routing

import (
	"encoding/json"
	"net/http"

	"github.com/teilomillet/mdconvert/server/metrics"
)

// Handler names accepted in RouteConfig.Handler.
const (
	HandlerConvert = "convert"
	HandlerHealth  = "health"
	HandlerMetrics = "metrics"
)

// HealthHandler answers with {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}

// DefaultHandlers returns the named handlers the route table can refer to.
// The metrics handler is omitted when m is nil.
func DefaultHandlers(convert http.Handler, m *metrics.Metrics) map[string]http.Handler {
	handlers := map[string]http.Handler{
		HandlerConvert: convert,
		HandlerHealth:  HealthHandler(),
	}
	if m != nil {
		handlers[HandlerMetrics] = m.Handler()
	}
	return handlers
}
