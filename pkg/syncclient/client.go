// Package syncclient is the HTTP boundary between the editor and the
// calculation API. Every call carries a request id, a trace context and,
// when configured, the anti-forgery header.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultCSRFHeader is sent when Options.CSRFHeader is empty
	DefaultCSRFHeader = "X-CSRF-TOKEN"

	// RequestIDHeader carries a per-call uuid
	RequestIDHeader = "X-Request-ID"

	// maxErrorBody caps how much of a failed response is kept
	maxErrorBody = 4 << 10

	tracerName = "github.com/dd0wney/cluso-topology/pkg/syncclient"
)

// Options configures a Client
type Options struct {
	BaseURL       string
	CalculationID int64
	CSRFHeader    string
	CSRFToken     string
	HTTPClient    *http.Client
	Logger        logging.Logger
	Metrics       *metrics.Registry
	Tracer        trace.Tracer
}

// Client performs JSON calls against /api/calculations/{calcId}
type Client struct {
	base       string
	calcID     int64
	csrfHeader string
	csrfToken  string
	httpClient *http.Client
	logger     logging.Logger
	metrics    *metrics.Registry
	tracer     trace.Tracer
}

// New creates a client. A nil HTTPClient uses one without a timeout; nil
// Metrics disables instrumentation.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	header := opts.CSRFHeader
	if header == "" {
		header = DefaultCSRFHeader
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Client{
		base:       fmt.Sprintf("%s/api/calculations/%d", strings.TrimRight(opts.BaseURL, "/"), opts.CalculationID),
		calcID:     opts.CalculationID,
		csrfHeader: header,
		csrfToken:  opts.CSRFToken,
		httpClient: httpClient,
		logger: logging.OrDefault(opts.Logger).With(
			logging.Component("syncclient"),
			logging.Calculation(opts.CalculationID),
		),
		metrics: opts.Metrics,
		tracer:  tracer,
	}
}

// BaseURL returns the calculation-scoped URL prefix
func (c *Client) BaseURL() string {
	return c.base
}

// Call sends body (if non-nil) as JSON to path, relative to the calculation
// base, and decodes a JSON response into out (if non-nil). A non-2xx answer
// returns *HTTPError.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) (err error) {
	route := metrics.RouteLabel(path)
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.Int64("calculation.id", c.calcID),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	start := time.Now()
	status := 0
	if c.metrics != nil {
		c.metrics.SyncRequestsInFlight.Inc()
	}
	defer func() {
		elapsed := time.Since(start)
		if c.metrics != nil {
			c.metrics.SyncRequestsInFlight.Dec()
			c.metrics.RecordSyncRequest(method, route, status, elapsed)
		}
		fields := []logging.Field{
			logging.Method(method), logging.Path(path), logging.Status(status),
			logging.RequestID(requestID), logging.Latency(elapsed),
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("API call failed", append(fields, logging.Error(err))...)
			return
		}
		span.SetStatus(codes.Ok, "")
		c.logger.Debug("API call", fields...)
	}()

	var reader io.Reader
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return fmt.Errorf("marshal request: %w", merr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrfToken != "" {
		req.Header.Set(c.csrfHeader, c.csrfToken)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if status < 200 || status > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Method: method,
			Path:   path,
			Status: status,
			Body:   strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
