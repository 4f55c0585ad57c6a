// Package handlers provides the HTTP handlers of the conversion service.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/errors"
	"github.com/teilomillet/mdconvert/server/metrics"
	"github.com/teilomillet/mdconvert/server/middleware"
	"github.com/teilomillet/mdconvert/server/processing"
	"github.com/teilomillet/mdconvert/server/validation"
	"go.uber.org/zap"
)

// ProcessTimeLayout formats processTime as ISO-8601 UTC with milliseconds.
const ProcessTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ConvertResponse is the success body of the conversion endpoint.
type ConvertResponse struct {
	ProcessedText string `json:"processedText"`
	ProcessTime   string `json:"processTime"`
}

// settings is the reloadable part of the handler.
type settings struct {
	convert     config.ConvertConfig
	cors        config.CORSConfig
	development bool
	transformer processing.Transformer
}

func newSettings(cfg *config.Config) (*settings, error) {
	transformer, err := processing.NewTransformer(cfg.Convert)
	if err != nil {
		return nil, err
	}
	return &settings{
		convert:     cfg.Convert,
		cors:        cfg.CORS,
		development: cfg.IsDevelopment(),
		transformer: transformer,
	}, nil
}

// ConvertHandler serves the markdown conversion endpoint. It answers
// preflight requests itself, rejects every method other than POST and OPTIONS,
// and writes CORS headers on every response.
type ConvertHandler struct {
	settings atomic.Pointer[settings]
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewConvertHandler creates a handler from cfg. m may be nil.
func NewConvertHandler(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*ConvertHandler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := newSettings(cfg)
	if err != nil {
		return nil, err
	}

	h := &ConvertHandler{
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
	h.settings.Store(s)
	return h, nil
}

// Reload swaps in the convert, cors and environment settings of cfg.
// In-flight requests finish with the settings they started with.
func (h *ConvertHandler) Reload(cfg *config.Config) error {
	s, err := newSettings(cfg)
	if err != nil {
		return err
	}
	h.settings.Store(s)
	h.logger.Info("conversion settings reloaded",
		zap.Int("max_text_length", cfg.Convert.MaxTextLength),
		zap.Bool("development", s.development),
	)
	return nil
}

// IsDevelopment reports whether error details are returned to clients.
func (h *ConvertHandler) IsDevelopment() bool {
	return h.settings.Load().development
}

// CORS returns the current cross-origin settings.
func (h *ConvertHandler) CORS() config.CORSConfig {
	return h.settings.Load().cors
}

func (h *ConvertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Load()
	requestID := middleware.GetRequestID(r.Context())

	middleware.SetCORSHeaders(w.Header(), s.cors)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		h.fail(w, errors.NewMethodNotAllowedError(requestID, r.Method), requestID)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.convert.MaxBodyBytes)
	req, err := validation.DecodeRequest(body)
	if err != nil {
		h.fail(w, errors.NewInternalError(requestID, err, s.development), requestID)
		return
	}

	if verr := validation.ValidateRequest(requestID, req, s.convert.MaxTextLength); verr != nil {
		h.fail(w, verr, requestID)
		return
	}

	opts := processing.Options{
		AutoNumber:   req.AutoNumber(),
		RemoveSource: req.RemoveSource,
	}
	res, err := transform(s.transformer, req.Text, opts)
	if err != nil {
		h.fail(w, errors.NewInternalError(requestID, err, s.development), requestID)
		return
	}

	resp := ConvertResponse{
		ProcessedText: res.Text,
		ProcessTime:   h.now().UTC().Format(ProcessTimeLayout),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		return
	}

	textLength := validation.TextLength(req.Text)
	h.record(opts, res, textLength)
	h.logger.Info("text converted",
		zap.String("request_id", requestID),
		zap.Int("text_length", textLength),
		zap.Int("result_length", validation.TextLength(res.Text)),
		zap.Bool("auto_number", opts.AutoNumber),
		zap.Bool("remove_source", opts.RemoveSource),
		zap.Int("numbered", res.Numbered),
		zap.Int("sources_removed", res.SourcesRemoved),
	)
}

// transform runs the transformer, turning a panic into an error so the
// client still gets a 500 body.
func transform(t processing.Transformer, text string, opts processing.Options) (res processing.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("transform: %v", rec)
		}
	}()
	return t.Transform(text, opts), nil
}

func (h *ConvertHandler) fail(w http.ResponseWriter, err *errors.ConvertError, requestID string) {
	errors.LogError(h.logger, err, requestID)
	if h.metrics != nil {
		h.metrics.ErrorsTotal.WithLabelValues(string(err.Type)).Inc()
	}
	errors.WriteError(w, err)
}

func (h *ConvertHandler) record(opts processing.Options, res processing.Result, textLength int) {
	if h.metrics == nil {
		return
	}
	mode := "plain"
	if opts.AutoNumber {
		mode = validation.ModeFormat
	}
	h.metrics.ConversionsTotal.WithLabelValues(mode).Inc()
	h.metrics.ItemsNumbered.Add(float64(res.Numbered))
	h.metrics.SourcesRemoved.Add(float64(res.SourcesRemoved))
	h.metrics.TextLength.Observe(float64(textLength))
}
