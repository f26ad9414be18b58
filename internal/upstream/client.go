package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/audiobrew/web/internal/metrics"
	"github.com/audiobrew/web/pkg/logger"
)

const (
	target       = "backend"
	maxRedirects = 5
)

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("upstream unavailable")

// Doer is the subset of *fasthttp.Client used here.
type Doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
	DoRedirects(req *fasthttp.Request, resp *fasthttp.Response, maxRedirectsCount int) error
}

// Config controls the backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// BreakerFailures is the number of consecutive network failures that
	// opens the breaker. Zero disables it.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client talks to the FastAPI backend. Non-2xx responses are not errors;
// only transport failures are.
type Client struct {
	http    Doer
	baseURL string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New builds a backend client. A nil doer gets a default fasthttp.Client.
func New(cfg Config, doer Doer, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if doer == nil {
		doer = NewHTTPClient(cfg.Timeout)
	}

	c := &Client{
		http:    doer,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		logger:  log,
	}

	if cfg.BreakerFailures > 0 {
		failures := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        target,
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed",
					zap.String("component", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			},
		})
	}
	return c
}

// NewHTTPClient returns the fasthttp client shared by upstream callers.
func NewHTTPClient(timeout time.Duration) *fasthttp.Client {
	return &fasthttp.Client{
		Name:                     "audiobrew-web",
		ReadTimeout:              timeout,
		WriteTimeout:             timeout,
		MaxIdleConnDuration:      90 * time.Second,
		NoDefaultUserAgentHeader: true,
	}
}

// URL joins endpoint onto the base URL, dropping one leading slash.
func (c *Client) URL(endpoint string) string {
	return c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
}

// Get issues a GET against endpoint with the given query.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: fasthttp.MethodGet, Endpoint: endpoint, Query: query})
}

// Delete issues a DELETE against endpoint with the given query.
func (c *Client) Delete(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: fasthttp.MethodDelete, Endpoint: endpoint, Query: query})
}

// Request describes one backend call.
type Request struct {
	Method          string
	Endpoint        string
	Query           url.Values
	JSON            interface{}
	FollowRedirects bool
}

// Do executes req through the circuit breaker.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.do(ctx, req)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequestsTotal.WithLabelValues(target, "breaker_open").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.(*Response), nil
}

func (c *Client) do(ctx context.Context, in Request) (*Response, error) {
	uri := c.URL(in.Endpoint)
	if len(in.Query) > 0 {
		uri += "?" + in.Query.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(in.Method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if in.JSON != nil {
		payload, err := json.Marshal(in.JSON)
		if err != nil {
			return nil, err
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	start := time.Now()
	err := c.send(ctx, req, resp, in.FollowRedirects)
	metrics.UpstreamRequestDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(target, "network_error").Inc()
		logger.WithRequestID(ctx, c.logger).Warn("backend request failed",
			zap.String("method", in.Method),
			zap.String("endpoint", in.Endpoint),
			zap.Error(err))
		return nil, err
	}

	out := newResponse(resp)
	outcome := "ok"
	if !out.OK() {
		outcome = "http_error"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(target, outcome).Inc()
	return out, nil
}

func (c *Client) send(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, follow bool) error {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if follow {
		req.SetTimeout(time.Until(deadline))
		return c.http.DoRedirects(req, resp, maxRedirects)
	}
	return c.http.DoDeadline(req, resp, deadline)
}

// Fetch downloads an absolute URL outside the backend, e.g. podcast audio.
// It bypasses the breaker.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rawURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.send(ctx, req, resp, true); err != nil {
		return nil, err
	}
	return newResponse(resp), nil
}

// Ping checks that the backend answers at all. Any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, Request{Method: fasthttp.MethodGet, Endpoint: "/api"})
	return err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
