package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/errors"
	"go.uber.org/zap"
)

// timingWriter stamps X-Response-Time just before the headers go out.
type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (tw *timingWriter) WriteHeader(code int) {
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.Header().Set("X-Response-Time", time.Since(tw.start).String())
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

// RequestTimer measures request processing time
func RequestTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &timingWriter{ResponseWriter: w, start: time.Now()}
		next.ServeHTTP(tw, r)
		if !tw.wroteHeader {
			tw.WriteHeader(http.StatusOK)
		}
	})
}

// PanicRecovery recovers from panics and returns a 500 error. The panic
// value is included in the response only when expose reports true.
func PanicRecovery(logger *zap.Logger, expose func() bool) func(http.Handler) http.Handler {
	return errors.ErrorHandler(logger, expose)
}

// CORS sets the cross-origin headers on every response, including errors
// written before a route handler runs. Preflight requests are passed on so
// that unknown paths still answer 404. settings is read per request so
// reloaded values apply immediately.
func CORS(settings func() config.CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetCORSHeaders(w.Header(), settings())
			next.ServeHTTP(w, r)
		})
	}
}

// SetCORSHeaders writes the cross-origin headers described by cfg.
func SetCORSHeaders(h http.Header, cfg config.CORSConfig) {
	h.Set("Access-Control-Allow-Origin", cfg.AllowOrigin)
	h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
	h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
}

// StaticCORS is CORS with fixed settings.
func StaticCORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return CORS(func() config.CORSConfig { return cfg })
}
