package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler wraps an http.Handler and turns panics into internal errors.
// When expose returns true the panic value is echoed in the response.
func ErrorHandler(logger *zap.Logger, expose func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.ByteString("stacktrace", debug.Stack()),
						zap.String("request_id", requestID),
					)

					WriteError(w, NewInternalError(requestID, fmt.Errorf("%v", rec), expose != nil && expose()))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context
func LogError(logger *zap.Logger, err error, requestID string) {
	var convertErr *ConvertError
	if As(err, &convertErr) {
		fields := []zap.Field{
			zap.String("error_type", string(convertErr.Type)),
			zap.String("message", convertErr.Message),
			zap.Int("code", convertErr.Code),
			zap.String("request_id", requestID),
		}
		if cause := convertErr.Unwrap(); cause != nil {
			fields = append(fields, zap.NamedError("cause", cause))
		}

		// Client mistakes are routine; only server-side failures are errors.
		if convertErr.Code >= http.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}
		return
	}

	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
