package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/quotes-api/internal/adapters/clients"

	defaultTimeout               = 30 * time.Second
	transportMaxIdleConns        = 100
	transportMaxIdleConnsPerHost = 10
	transportIdleConnTimeout     = 90 * time.Second
)

// Outcome labels on the request metrics.
const (
	outcomeOK          = "ok"
	outcomeError       = "error"
	outcomeCanceled    = "canceled"
	outcomeCircuitOpen = "circuit_open"
)

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path, e.g. https://xyz.supabase.co/rest/v1.
	BaseURL string

	// ServiceName names the upstream in logs, spans and metrics.
	ServiceName string

	// Timeout bounds a single attempt. Retries and backoff come on top.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// AuthFunc sets credentials on every attempt, retries included.
	AuthFunc func(*http.Request)

	Logger *slog.Logger
}

// Client sends requests to one upstream with retries, a circuit breaker,
// tracing, metrics and request id propagation.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     *Config
	logger  *slog.Logger
	breaker *Breaker

	tracer   trace.Tracer
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

// New creates a Client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cfg.Retry.MaxAttempts = max(cfg.Retry.MaxAttempts, 1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(
		slog.String("component", "clients.Client"),
		slog.String("upstream", cfg.ServiceName),
	)

	breaker := NewBreaker(cfg.Circuit, func(from, to BreakerState) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
	})

	c := &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        orDefault(cfg.Transport.MaxIdleConns, transportMaxIdleConns),
				MaxIdleConnsPerHost: orDefault(cfg.Transport.MaxIdleConnsPerHost, transportMaxIdleConnsPerHost),
				IdleConnTimeout:     orDefault(cfg.Transport.IdleConnTimeout, transportIdleConnTimeout),
			},
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		cfg:     cfg,
		logger:  logger,
		breaker: breaker,
		tracer:  otel.Tracer(instrumentationName),
	}

	if err := c.initMetrics(otel.Meter(instrumentationName)); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) initMetrics(meter metric.Meter) error {
	var err error

	c.duration, err = meter.Float64Histogram("http.client.request.duration",
		metric.WithDescription("Duration of upstream calls including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	c.requests, err = meter.Int64Counter("http.client.request.total",
		metric.WithDescription("Upstream calls by outcome"),
	)
	if err != nil {
		return fmt.Errorf("creating request counter: %w", err)
	}

	_, err = meter.Int64ObservableGauge("http.client.circuit.open",
		metric.WithDescription("1 while the upstream circuit breaker is open"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			var open int64
			if c.breaker.State() == BreakerOpen {
				open = 1
			}

			o.Observe(open, metric.WithAttributes(attribute.String("peer.service", c.cfg.ServiceName)))

			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("creating circuit gauge: %w", err)
	}

	return nil
}

// NewRequest builds a request for path under the base URL. Query values are
// encoded onto the URL and a non-nil body is sent as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.buildURL(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// Do sends req. Transient failures (network errors, 5xx, 429) of idempotent
// requests are retried with exponential backoff. POST and PATCH get one attempt.
// The breaker sees one outcome per call, not per attempt.
//
// Any response is returned to the caller as is, including the last transient
// one, so its body can be decoded. Only transport failures come back as errors.
//
// Bodies are replayed through req.GetBody, which NewRequest sets for byte and
// string readers.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := logging.FromContextOr(ctx, c.logger).With(
		slog.String("upstream", c.cfg.ServiceName),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if err := c.breaker.Acquire(); err != nil {
		c.observe(ctx, req.Method, 0, start, outcomeCircuitOpen)
		logger.Warn("request blocked by circuit breaker")

		return nil, err
	}

	c.decorate(ctx, req)

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("HTTP %s %s", req.Method, c.cfg.ServiceName),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL.String()),
			attribute.String("peer.service", c.cfg.ServiceName),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.attempts(ctx, req, logger)
	if errors.Is(err, context.Canceled) {
		// Cancellation is not an upstream failure.
		c.breaker.Release()
		c.observe(ctx, req.Method, 0, start, outcomeCanceled)

		return nil, err
	}

	if err != nil {
		c.breaker.Report(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observe(ctx, req.Method, 0, start, outcomeError)
		logger.Error("request failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)

		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	if retryableStatus(resp.StatusCode) {
		c.breaker.Report(&StatusError{StatusCode: resp.StatusCode})
		c.observe(ctx, req.Method, resp.StatusCode, start, outcomeError)
		logger.Warn("upstream kept failing",
			slog.Int("status", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)

		return resp, nil
	}

	c.breaker.Report(nil)
	c.observe(ctx, req.Method, resp.StatusCode, start, outcomeOK)
	logger.Debug("request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

// attempts runs the retry loop. The last attempt's response is returned even
// when its status is transient; ErrRetriesExhausted means every attempt failed
// in transport.
func (c *Client) attempts(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	budget := c.cfg.Retry.MaxAttempts
	if !idempotent(req.Method) {
		// A lost response to an insert may still have committed it.
		budget = 1
	}

	for n := range budget {
		if n > 0 {
			wait := c.backoff(n)
			logger.Debug("retrying request",
				slog.Int("attempt", n+1),
				slog.Duration("backoff", wait),
				slog.Any("last_error", lastErr),
			)

			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}

			if err := rewindBody(req); err != nil {
				return nil, err
			}

			if c.cfg.AuthFunc != nil {
				c.cfg.AuthFunc(req)
			}
		}

		resp, err := c.http.Do(req.WithContext(ctx))

		switch {
		case err != nil && !isRetryableError(err):
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
		case err != nil:
			lastErr = err
		case retryableStatus(resp.StatusCode) && n < budget-1:
			discard(resp)
			lastErr = &StatusError{StatusCode: resp.StatusCode}
		default:
			return resp, nil
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, budget, lastErr)
}

// backoff returns the wait before the given retry: InitialInterval grown by
// Multiplier per attempt, capped at MaxInterval, then spread by ±JitterFactor.
func (c *Client) backoff(attempt int) time.Duration {
	r := c.cfg.Retry

	wait := float64(r.InitialInterval) * math.Pow(max(r.Multiplier, 1), float64(attempt-1))
	if r.MaxInterval > 0 {
		wait = math.Min(wait, float64(r.MaxInterval))
	}

	if r.JitterFactor > 0 {
		wait += wait * r.JitterFactor * (rand.Float64()*2 - 1) //nolint:gosec // jitter only
	}

	return time.Duration(wait)
}

// Breaker returns the client's circuit breaker.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// decorate propagates request and correlation ids and applies credentials.
func (c *Client) decorate(ctx context.Context, req *http.Request) {
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}

	if c.cfg.AuthFunc != nil {
		c.cfg.AuthFunc(req)
	}
}

func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

func (c *Client) observe(ctx context.Context, method string, status int, start time.Time, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("peer.service", c.cfg.ServiceName),
		attribute.String("outcome", outcome),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}

	set := metric.WithAttributes(attrs...)
	c.duration.Record(ctx, time.Since(start).Seconds(), set)
	c.requests.Add(ctx, 1, set)
}

func orDefault[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}

	return v
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// discard drains and closes a response that will not be returned, so the
// connection can be reused.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}

	if req.GetBody == nil {
		return errors.New("request body cannot be replayed")
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewinding request body: %w", err)
	}

	req.Body = body

	return nil
}

// idempotent reports whether method may be repeated without changing the outcome.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// isRetryableError reports whether a transport error is worth another attempt.
// Cancellation and deadline errors never are.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
