// Package lambda runs the conversion router behind API Gateway style
// events, the shape used by AWS Lambda and Netlify Functions.
package lambda

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Adapter translates proxy events to HTTP requests for an http.Handler.
type Adapter struct {
	handler http.Handler
	logger  *zap.Logger
}

// NewAdapter wraps handler.
func NewAdapter(handler http.Handler, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{handler: handler, logger: logger}
}

// Handle serves one proxy event. Its signature matches what lambda.Start
// expects.
func (a *Adapter) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := NewRequest(ctx, event)
	if err != nil {
		a.logger.Error("invalid proxy event",
			zap.Error(err),
			zap.String("method", event.HTTPMethod),
			zap.String("path", event.Path),
		)
		return events.APIGatewayProxyResponse{}, err
	}

	rw := newResponseWriter()
	a.handler.ServeHTTP(rw, req)
	return rw.proxyResponse(), nil
}

// NewRequest converts a proxy event to an *http.Request bound to ctx.
func NewRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		body = decoded
	}

	path := event.Path
	if path == "" {
		path = "/"
	}
	u := url.URL{Path: path, RawQuery: queryString(event).Encode()}

	method := event.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.RequestURI(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if len(event.MultiValueHeaders) > 0 {
		for k, values := range event.MultiValueHeaders {
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}
	} else {
		for k, v := range event.Headers {
			req.Header.Set(k, v)
		}
	}

	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if ip := event.RequestContext.Identity.SourceIP; ip != "" {
		req.RemoteAddr = ip
	}
	req.RequestURI = u.RequestURI()

	return req, nil
}

func queryString(event events.APIGatewayProxyRequest) url.Values {
	q := url.Values{}
	if len(event.MultiValueQueryStringParameters) > 0 {
		for k, values := range event.MultiValueQueryStringParameters {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		return q
	}
	for k, v := range event.QueryStringParameters {
		q.Set(k, v)
	}
	return q
}

// responseWriter buffers a response for conversion to a proxy response.
type responseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header)}
}

func (w *responseWriter) Header() http.Header {
	return w.header
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *responseWriter) proxyResponse() events.APIGatewayProxyResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	resp := events.APIGatewayProxyResponse{
		StatusCode:        status,
		Headers:           make(map[string]string, len(w.header)),
		MultiValueHeaders: make(map[string][]string, len(w.header)),
	}
	for k, values := range w.header {
		if len(values) == 0 {
			continue
		}
		resp.Headers[k] = values[0]
		resp.MultiValueHeaders[k] = append([]string(nil), values...)
	}

	body := w.body.Bytes()
	if utf8.Valid(body) {
		resp.Body = string(body)
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(body)
		resp.IsBase64Encoded = true
	}
	return resp
}
