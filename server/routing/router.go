// Package routing builds the HTTP router of the conversion service from the
// route table in the configuration.
package routing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/errors"
	"github.com/teilomillet/mdconvert/server/metrics"
	"github.com/teilomillet/mdconvert/server/middleware"
	"go.uber.org/zap"
)

// Route middleware names accepted in RouteConfig.Middleware.
const (
	MiddlewareRateLimit = "ratelimit"
	MiddlewareQueue     = "queue"
)

// Dependencies are the shared components the router wires into middleware.
// Any of them may be left zero.
type Dependencies struct {
	Metrics *metrics.Metrics
	Limiter middleware.Limiter
	Queue   *middleware.QueueMiddleware

	// CORS returns the current cross-origin settings
	CORS func() config.CORSConfig

	// Expose reports whether panic details may be sent to clients
	Expose func() bool
}

// Router handles HTTP routing for the configured endpoints.
type Router struct {
	router   chi.Router
	handlers map[string]http.Handler
	deps     Dependencies
	logger   *zap.Logger
	cfg      *config.Config
}

// NewRouter creates a new router with the given configuration.
// It installs the global middleware stack and then every route of
// cfg.Routes whose handler name is present in handlers.
func NewRouter(cfg *config.Config, handlers map[string]http.Handler, deps Dependencies, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.CORS == nil {
		cors := cfg.CORS
		deps.CORS = func() config.CORSConfig { return cors }
	}
	if deps.Expose == nil {
		dev := cfg.IsDevelopment()
		deps.Expose = func() bool { return dev }
	}

	r := &Router{
		router:   chi.NewRouter(),
		handlers: handlers,
		deps:     deps,
		logger:   logger,
		cfg:      cfg,
	}

	r.router.Use(middleware.RequestID)
	if cfg.Server.TrustProxyHeaders {
		r.router.Use(chimw.RealIP)
	}
	r.router.Use(middleware.RequestTimer)
	r.router.Use(middleware.Logging(logger))
	if deps.Metrics != nil {
		r.router.Use(middleware.PrometheusMetrics(deps.Metrics))
	}
	r.router.Use(middleware.PanicRecovery(logger, deps.Expose))
	r.router.Use(middleware.CORS(deps.CORS))

	r.setupRoutes()

	r.router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, errors.NewNotFoundError(middleware.GetRequestID(req.Context())))
	})

	return r
}

// setupRoutes registers each configured route with its route middleware.
// Routes accept every method; handlers decide which ones they serve.
func (r *Router) setupRoutes() {
	for _, route := range r.cfg.Routes {
		handler, ok := r.handlers[route.Handler]
		if !ok {
			r.logger.Error("handler not found",
				zap.String("handler", route.Handler),
				zap.String("path", route.Path),
			)
			continue
		}

		route := route
		r.router.Group(func(router chi.Router) {
			for _, mw := range route.Middleware {
				switch mw {
				case MiddlewareRateLimit:
					router.Use(middleware.RateLimit(r.deps.Limiter, r.deps.Metrics, r.logger))
				case MiddlewareQueue:
					if r.deps.Queue != nil {
						router.Use(r.deps.Queue.Handler)
					}
				default:
					r.logger.Warn("unknown middleware requested",
						zap.String("middleware", mw),
						zap.String("path", route.Path),
					)
				}
			}

			router.Handle(route.Path, handler)
		})

		r.logger.Debug("route registered",
			zap.String("path", route.Path),
			zap.String("handler", route.Handler),
			zap.Strings("middleware", route.Middleware),
		)
	}
}

// ServeHTTP implements the http.Handler interface.
// Delegates request handling to the underlying Chi router.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
